package discovery

import (
	"sort"
	"strings"

	"hubd/pkg/types"
)

// quantSuffix maps a filename suffix token to its quantization level.
// The list is ordered most-specific first so stripping is unambiguous
// ("_q4f16" must be tried before "_q4", "_int4" before "_4").
type quantSuffix struct {
	token string
	level types.Quantization
}

var quantSuffixes = []quantSuffix{
	{"_int4", types.QuantInt4},
	{"_uint4", types.QuantInt4},
	{"_q4f16", types.QuantInt4},
	{"_q4", types.QuantInt4},
	{"_bnb4", types.QuantInt4},
	{"_fp16", types.QuantFp16},
	{"_half", types.QuantFp16},
	{"_int8", types.QuantInt8},
	{"_uint8", types.QuantInt8},
	{"_q8", types.QuantInt8},
	{"_quantized", types.QuantInt8},
	{"_quant", types.QuantInt8},
}

// StripQuantSuffix removes a recognized quantization suffix from a filename
// stem. It returns the base stem, the detected level, and whether a suffix
// was found. Matching is case-insensitive; the returned base preserves the
// input's case.
func StripQuantSuffix(s string) (base string, level types.Quantization, found bool) {
	lower := strings.ToLower(s)
	for _, q := range quantSuffixes {
		if strings.HasSuffix(lower, q.token) {
			return s[:len(s)-len(q.token)], q.level, true
		}
	}
	return s, types.QuantDefault, false
}

// QuantOf returns the quantization level encoded in a file path's name.
func QuantOf(p string) types.Quantization {
	_, level, _ := StripQuantSuffix(stem(p))
	return level
}

// baseKey groups variants of one logical file: full path with extension and
// quantization suffix removed.
func baseKey(p string) string {
	ext := extOf(p)
	trimmed := strings.TrimSuffix(p, ext)
	base, _, _ := StripQuantSuffix(trimmed)
	return strings.ToLower(base)
}

func extOf(p string) string {
	if i := strings.LastIndexByte(p, '.'); i >= 0 && !strings.ContainsRune(p[i:], '/') {
		return p[i:]
	}
	return ""
}

// SelectBest picks the preferred variant from a candidate set.
//
// Candidates are grouped by base name (quant suffix stripped); the priority
// list is walked in order and the first group member at that level wins.
// QuantDefault matches files with no recognized suffix. When no priority
// matches anything, the first candidate in sorted order is returned: an
// unrecognized naming scheme must never fail discovery outright.
func SelectBest(candidates []types.RepoEntry, priorities []types.Quantization) (types.RepoEntry, bool) {
	if len(candidates) == 0 {
		return types.RepoEntry{}, false
	}
	groups := make(map[string][]types.RepoEntry)
	var keys []string
	for _, c := range candidates {
		k := baseKey(c.Path)
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], c)
	}
	sort.Strings(keys)
	for k := range groups {
		g := groups[k]
		sort.Slice(g, func(i, j int) bool { return g[i].Path < g[j].Path })
	}

	for _, want := range priorities {
		for _, k := range keys {
			for _, c := range groups[k] {
				if QuantOf(c.Path) == want {
					return c, true
				}
			}
		}
	}
	// Deterministic fallback: first member of the first group, sorted order.
	return groups[keys[0]][0], true
}

// decoderVariantOf classifies a decoder file's export flavor.
func decoderVariantOf(p string) types.DecoderVariant {
	base, _, _ := StripQuantSuffix(strings.ToLower(stem(p)))
	switch {
	case strings.Contains(base, "merged"):
		return types.DecoderMerged
	case strings.Contains(base, "with_past"):
		return types.DecoderWithPast
	default:
		return types.DecoderStandard
	}
}

// SelectDecoder applies the decoder-variant priority before quantization
// matching: architecture-variant choice takes precedence over precision.
func SelectDecoder(decoders []types.RepoEntry, variantPriority []types.DecoderVariant, quantPriority []types.Quantization) (types.RepoEntry, bool) {
	if len(decoders) == 0 {
		return types.RepoEntry{}, false
	}
	if len(variantPriority) == 0 {
		variantPriority = []types.DecoderVariant{types.DecoderMerged, types.DecoderStandard, types.DecoderWithPast}
	}
	for _, v := range variantPriority {
		var matching []types.RepoEntry
		for _, d := range decoders {
			if decoderVariantOf(d.Path) == v {
				matching = append(matching, d)
			}
		}
		if len(matching) > 0 {
			return SelectBest(matching, quantPriority)
		}
	}
	return SelectBest(decoders, quantPriority)
}

// SelectEncoderMatching picks an encoder constrained to the decoder's
// quantization level. A decoder with no suffix prefers a suffix-free encoder.
// When nothing matches, the first available encoder is used; role selection
// never aborts on a precision mismatch.
func SelectEncoderMatching(encoders []types.RepoEntry, decoderQuant types.Quantization, quantPriority []types.Quantization) (types.RepoEntry, bool) {
	if len(encoders) == 0 {
		return types.RepoEntry{}, false
	}
	var matching []types.RepoEntry
	for _, e := range encoders {
		if QuantOf(e.Path) == decoderQuant {
			matching = append(matching, e)
		}
	}
	if len(matching) > 0 {
		return SelectBest(matching, []types.Quantization{decoderQuant})
	}
	sorted := append([]types.RepoEntry(nil), encoders...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	return sorted[0], true
}
