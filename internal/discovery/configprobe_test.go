package discovery

import "testing"

func TestProbeContextLength(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
		ok   bool
	}{
		{"llama style", `{"max_position_embeddings": 4096}`, 4096, true},
		{"nested text config", `{"text_config": {"max_position_embeddings": 8192}}`, 8192, true},
		{"gpt2 style", `{"n_positions": 1024}`, 1024, true},
		{"seq length", `{"seq_length": 2048}`, 2048, true},
		{"tokenizer style", `{"model_max_length": 512}`, 512, true},
		{"priority order", `{"n_positions": 1024, "max_position_embeddings": 4096}`, 4096, true},
		{"zero rejected", `{"max_position_embeddings": 0, "n_positions": 1024}`, 1024, true},
		{"wrong type skipped", `{"max_position_embeddings": "4k", "seq_length": 2048}`, 2048, true},
		{"no known key", `{"hidden_size": 768}`, 0, false},
		{"not json", `not a config`, 0, false},
		{"empty", ``, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ProbeContextLength([]byte(tc.raw))
			if got != tc.want || ok != tc.ok {
				t.Fatalf("ProbeContextLength(%q) = (%d, %v), want (%d, %v)", tc.raw, got, ok, tc.want, tc.ok)
			}
		})
	}
}
