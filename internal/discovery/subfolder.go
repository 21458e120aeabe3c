package discovery

import (
	"sort"
	"strings"

	"hubd/pkg/types"
)

// conventionalSubfolders are tried first during subfolder detection, in order.
var conventionalSubfolders = []string{"onnx"}

// deviceKeywords maps a device preference to the directory-name token that
// marks a device-specific export.
var deviceKeywords = map[types.DevicePreference]string{
	types.DeviceCpu:      "cpu",
	types.DeviceCuda:     "cuda",
	types.DeviceDirectML: "dml",
	types.DeviceCoreML:   "coreml",
}

// quantKeywords maps a quantization level to its directory-name token.
var quantKeywords = map[types.Quantization]string{
	types.QuantFp16: "fp16",
	types.QuantInt8: "int8",
	types.QuantInt4: "int4",
}

// topLevelDirCounts returns, per top-level directory, how many matched model
// files live under it.
func topLevelDirCounts(modelFiles []types.RepoEntry) map[string]int {
	counts := make(map[string]int)
	for _, f := range modelFiles {
		if top, _, ok := strings.Cut(f.Path, "/"); ok {
			counts[top]++
		}
	}
	return counts
}

// ResolveSubfolder picks the repository subfolder to resolve models from.
//
// Priority: explicit preference, conventional names, a directory matching the
// device keyword, a directory matching a quantization-priority keyword, the
// directory holding the most matched files, then none (repository root).
// The most-populated fallback is policy, not incident: changing its tie-break
// silently changes which variant users receive.
func ResolveSubfolder(modelFiles []types.RepoEntry, prefs types.ModelPreferences) string {
	if prefs.Subfolder != "" {
		return prefs.Subfolder
	}
	counts := topLevelDirCounts(modelFiles)
	if len(counts) == 0 {
		return ""
	}
	dirs := make([]string, 0, len(counts))
	for d := range counts {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	for _, want := range conventionalSubfolders {
		for _, d := range dirs {
			if strings.EqualFold(d, want) {
				return d
			}
		}
	}
	if kw, ok := deviceKeywords[prefs.DevicePreference]; ok {
		for _, d := range dirs {
			if strings.Contains(strings.ToLower(d), kw) {
				return d
			}
		}
	}
	for _, q := range prefs.QuantizationPriority {
		kw, ok := quantKeywords[q]
		if !ok {
			continue
		}
		for _, d := range dirs {
			if strings.Contains(strings.ToLower(d), kw) {
				return d
			}
		}
	}
	// Most matched files wins; ties break on lexicographic order via the
	// sorted scan.
	best, bestCount := "", 0
	for _, d := range dirs {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}
