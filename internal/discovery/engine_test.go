package discovery

import (
	"context"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"hubd/pkg/types"
)

// fakeLister serves a fixed listing and counts calls.
type fakeLister struct {
	files []types.RepoEntry
	err   error
	calls int
}

func (f *fakeLister) ListFiles(_ context.Context, _, _ string) ([]types.RepoEntry, error) {
	f.calls++
	return f.files, f.err
}

func newTestEngine(files ...string) *Engine {
	return NewEngine(&fakeLister{files: entries(files...)}, zerolog.Nop())
}

func TestDiscoverSingleModelWithSubfolderAndConfigs(t *testing.T) {
	// End-to-end: int4 preferred inside the conventional onnx subfolder.
	e := newTestEngine("onnx/model.onnx", "onnx/model_int4.onnx", "config.json", "tokenizer.json")
	res, err := e.Discover(context.Background(), "org/name", "main", types.ModelPreferences{
		QuantizationPriority: []types.Quantization{types.QuantInt4, types.QuantDefault},
	})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if res.Subfolder != "onnx" {
		t.Fatalf("subfolder = %q, want onnx", res.Subfolder)
	}
	if !reflect.DeepEqual(res.PrimaryFiles, []string{"onnx/model_int4.onnx"}) {
		t.Fatalf("primary = %v", res.PrimaryFiles)
	}
	wantCfg := []string{"config.json", "tokenizer.json"}
	if !reflect.DeepEqual(res.ConfigFiles, wantCfg) {
		t.Fatalf("configs = %v, want %v", res.ConfigFiles, wantCfg)
	}
}

func TestDiscoverEncoderDecoderDefaultVariantPriority(t *testing.T) {
	e := newTestEngine("encoder_model.onnx", "decoder_model_merged.onnx", "decoder_model.onnx")
	res, err := e.Discover(context.Background(), "org/name", "", types.ModelPreferences{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if res.Architecture != types.ArchEncoderDecoder {
		t.Fatalf("architecture = %v", res.Architecture)
	}
	if res.RoleAssignments[types.RoleDecoder] != "decoder_model_merged.onnx" {
		t.Fatalf("decoder = %q, want merged", res.RoleAssignments[types.RoleDecoder])
	}
	if res.RoleAssignments[types.RoleEncoder] != "encoder_model.onnx" {
		t.Fatalf("encoder = %q", res.RoleAssignments[types.RoleEncoder])
	}
	if res.Revision != "main" {
		t.Fatalf("revision default = %q", res.Revision)
	}
}

func TestDiscoverMatchedQuantAcrossRoles(t *testing.T) {
	e := newTestEngine(
		"encoder_model.onnx", "encoder_model_int8.onnx",
		"decoder_model_merged_int8.onnx",
	)
	res, err := e.Discover(context.Background(), "org/name", "main", types.ModelPreferences{
		QuantizationPriority:  []types.Quantization{types.QuantInt8, types.QuantDefault},
		MatchQuantAcrossRoles: true,
	})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if res.RoleAssignments[types.RoleEncoder] != "encoder_model_int8.onnx" {
		t.Fatalf("encoder = %q, want int8 to match decoder", res.RoleAssignments[types.RoleEncoder])
	}
}

func TestDiscoverDiffusionPipeline(t *testing.T) {
	e := newTestEngine(
		"text_encoder/model.onnx",
		"text_encoder/model_fp16.onnx",
		"unet/model.onnx",
		"vae_decoder/model.onnx",
		"model_index.json",
		"scheduler_config.json",
	)
	res, err := e.Discover(context.Background(), "org/sd", "main", types.ModelPreferences{
		QuantizationPriority: []types.Quantization{types.QuantFp16, types.QuantDefault},
	})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if res.Architecture != types.ArchDiffusionPipeline {
		t.Fatalf("architecture = %v", res.Architecture)
	}
	want := []string{"text_encoder/model_fp16.onnx", "unet/model.onnx", "vae_decoder/model.onnx"}
	if !reflect.DeepEqual(res.PrimaryFiles, want) {
		t.Fatalf("primary = %v, want %v", res.PrimaryFiles, want)
	}
	wantCfg := []string{"model_index.json", "scheduler_config.json"}
	if !reflect.DeepEqual(res.ConfigFiles, wantCfg) {
		t.Fatalf("configs = %v, want %v", res.ConfigFiles, wantCfg)
	}
}

func TestDiscoverExternalDataChunksNumericOrder(t *testing.T) {
	files := []string{"model.onnx"}
	for i := 0; i <= 11; i++ {
		files = append(files, "model.onnx_data_"+itoa(i))
	}
	e := newTestEngine(files...)
	res, err := e.Discover(context.Background(), "org/big", "main", types.ModelPreferences{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	want := make([]string, 0, 12)
	for i := 0; i <= 11; i++ {
		want = append(want, "model.onnx_data_"+itoa(i))
	}
	if !reflect.DeepEqual(res.ExternalDataFiles, want) {
		t.Fatalf("external data = %v, want ascending numeric order", res.ExternalDataFiles)
	}
}

func TestDiscoverExternalDataSiblings(t *testing.T) {
	e := newTestEngine("model.onnx", "model.onnx.data", "model.onnx_data")
	res, err := e.Discover(context.Background(), "org/name", "main", types.ModelPreferences{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	want := []string{"model.onnx.data", "model.onnx_data"}
	if !reflect.DeepEqual(res.ExternalDataFiles, want) {
		t.Fatalf("external data = %v, want %v", res.ExternalDataFiles, want)
	}
}

func TestDiscoverChunkGapStopsProbing(t *testing.T) {
	e := newTestEngine("model.onnx", "model.onnx_data_0", "model.onnx_data_1", "model.onnx_data_3")
	res, err := e.Discover(context.Background(), "org/name", "main", types.ModelPreferences{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	want := []string{"model.onnx_data_0", "model.onnx_data_1"}
	if !reflect.DeepEqual(res.ExternalDataFiles, want) {
		t.Fatalf("external data = %v, want stop at first gap", res.ExternalDataFiles)
	}
}

func TestDiscoverExplicitOverrideBeatsHeuristic(t *testing.T) {
	e := newTestEngine("onnx/model.onnx", "onnx/model_int4.onnx", "custom/exotic.onnx")
	res, err := e.Discover(context.Background(), "org/name", "main", types.ModelPreferences{
		QuantizationPriority: []types.Quantization{types.QuantInt4},
		FileOverrides:        map[types.Role]string{types.RoleDecoder: "custom/exotic.onnx"},
	})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if !reflect.DeepEqual(res.PrimaryFiles, []string{"custom/exotic.onnx"}) {
		t.Fatalf("primary = %v, want explicit override only", res.PrimaryFiles)
	}
}

func TestDiscoverExplicitSubfolder(t *testing.T) {
	e := newTestEngine("cpu/model.onnx", "cuda/model.onnx")
	res, err := e.Discover(context.Background(), "org/name", "main", types.ModelPreferences{
		Subfolder: "cuda",
	})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if res.Subfolder != "cuda" {
		t.Fatalf("subfolder = %q, want cuda", res.Subfolder)
	}
	if !reflect.DeepEqual(res.PrimaryFiles, []string{"cuda/model.onnx"}) {
		t.Fatalf("primary = %v", res.PrimaryFiles)
	}
}

func TestDiscoverDeviceKeywordSubfolder(t *testing.T) {
	e := newTestEngine("cpu_int8/model.onnx", "cuda_fp16/model.onnx")
	res, err := e.Discover(context.Background(), "org/name", "main", types.ModelPreferences{
		DevicePreference: types.DeviceCuda,
	})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if res.Subfolder != "cuda_fp16" {
		t.Fatalf("subfolder = %q, want cuda_fp16", res.Subfolder)
	}
}

func TestDiscoverMostPopulatedSubfolderFallback(t *testing.T) {
	e := newTestEngine("a/m1.onnx", "b/m1.onnx", "b/m2.onnx")
	res, err := e.Discover(context.Background(), "org/name", "main", types.ModelPreferences{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if res.Subfolder != "b" {
		t.Fatalf("subfolder = %q, want most populated b", res.Subfolder)
	}
}

func TestDiscoverNoModelFiles(t *testing.T) {
	e := newTestEngine("config.json", "README.md")
	_, err := e.Discover(context.Background(), "org/empty", "main", types.ModelPreferences{})
	if !IsModelNotFound(err) {
		t.Fatalf("expected model-not-found, got %v", err)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
