package discovery

import (
	"encoding/json"
	"strings"
)

// contextLengthLookup is one candidate location for the context length inside
// a model config document. Path is dot-separated into nested objects;
// transform normalizes the raw JSON value to a token count.
type contextLengthLookup struct {
	path      string
	transform func(v any) (int, bool)
}

func asInt(v any) (int, bool) {
	// encoding/json decodes all numbers into float64.
	f, ok := v.(float64)
	if !ok || f <= 0 {
		return 0, false
	}
	return int(f), true
}

// contextLengthLookups is evaluated in priority order, stopping at the first
// present value. The order is policy: earlier keys are the more authoritative
// spellings across model families.
var contextLengthLookups = []contextLengthLookup{
	{path: "max_position_embeddings", transform: asInt},
	{path: "text_config.max_position_embeddings", transform: asInt},
	{path: "n_positions", transform: asInt},
	{path: "seq_length", transform: asInt},
	{path: "max_sequence_length", transform: asInt},
	{path: "model_max_length", transform: asInt},
}

func lookupPath(doc map[string]any, path string) (any, bool) {
	cur := any(doc)
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// ProbeContextLength extracts the model context length from a raw config
// document. Model families spell the value under different keys; the ordered
// lookup table tries each known spelling and the first present, valid value
// wins. Returns (0, false) when no lookup matches or the document is not
// valid JSON.
func ProbeContextLength(raw []byte) (int, bool) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, false
	}
	for _, l := range contextLengthLookups {
		v, ok := lookupPath(doc, l.path)
		if !ok {
			continue
		}
		if n, ok := l.transform(v); ok {
			return n, true
		}
	}
	return 0, false
}
