package types

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Hash returns a stable digest of the preferences, suitable for keying
// cached discovery results by (repo, revision, preferences).
func (p ModelPreferences) Hash() string {
	d := xxhash.New()
	for _, q := range p.QuantizationPriority {
		_, _ = d.WriteString("q:" + string(q) + "\n")
	}
	for _, v := range p.DecoderPriority {
		_, _ = d.WriteString("d:" + string(v) + "\n")
	}
	_, _ = d.WriteString("dev:" + string(p.DevicePreference) + "\n")
	_, _ = d.WriteString("sub:" + p.Subfolder + "\n")
	// Map iteration order is random; sort keys for a stable digest.
	roles := make([]string, 0, len(p.FileOverrides))
	for r := range p.FileOverrides {
		roles = append(roles, string(r))
	}
	sort.Strings(roles)
	for _, r := range roles {
		_, _ = d.WriteString("ov:" + r + "=" + p.FileOverrides[Role(r)] + "\n")
	}
	_, _ = d.WriteString("match:" + strconv.FormatBool(p.MatchQuantAcrossRoles) + "\n")
	return fmt.Sprintf("%016x", d.Sum64())
}
