package discovery

import (
	"path"
	"strings"

	"hubd/pkg/types"
)

// modelFileExtensions are the extensions treated as model files. Matching is
// case-insensitive; classification only ever looks at this filtered set.
var modelFileExtensions = []string{".onnx", ".ort"}

// pipelineComponentDirs are the directory names of multi-component generation
// pipelines. Names are compared after normalization (lowercase, separators
// stripped) so "vae_decoder", "vae-decoder" and "VAE Decoder" all match.
var pipelineComponentDirs = []string{
	"text_encoder",
	"text_encoder_2",
	"unet",
	"vae",
	"vae_decoder",
	"vae_encoder",
}

// encoderPatterns and decoderPatterns are filename stems matched by suffix
// after the quantization suffix has been stripped, most specific first.
var (
	encoderPatterns = []string{"encoder_model", "encoder"}
	decoderPatterns = []string{"decoder_model_merged", "decoder_with_past_model", "decoder_model", "decoder"}
)

// IsModelFile reports whether the entry is a model file by extension.
func IsModelFile(e types.RepoEntry) bool {
	if e.IsDirectory {
		return false
	}
	ext := strings.ToLower(path.Ext(e.Path))
	for _, want := range modelFileExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// FilterModelFiles returns only the extension-matched model files.
func FilterModelFiles(files []types.RepoEntry) []types.RepoEntry {
	var out []types.RepoEntry
	for _, f := range files {
		if IsModelFile(f) {
			out = append(out, f)
		}
	}
	return out
}

func normalizeDirName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var normalizedPipelineDirs = func() map[string]string {
	m := make(map[string]string, len(pipelineComponentDirs))
	for _, d := range pipelineComponentDirs {
		m[normalizeDirName(d)] = d
	}
	return m
}()

// pipelineDirsOf returns the distinct known pipeline-component directories
// (top-level) under which the given model files live.
func pipelineDirsOf(modelFiles []types.RepoEntry) map[string]bool {
	found := make(map[string]bool)
	for _, f := range modelFiles {
		top, _, ok := strings.Cut(f.Path, "/")
		if !ok {
			continue
		}
		if canonical, known := normalizedPipelineDirs[normalizeDirName(top)]; known {
			found[canonical] = true
		}
	}
	return found
}

// stem returns the filename without directory or extension.
func stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// matchesRole reports whether the file's quant-stripped stem ends with one of
// the given role patterns.
func matchesRole(p string, patterns []string) bool {
	s, _, _ := StripQuantSuffix(strings.ToLower(stem(p)))
	for _, pat := range patterns {
		if strings.HasSuffix(s, pat) {
			return true
		}
	}
	return false
}

// IsEncoderFile reports whether the path matches a known encoder pattern.
func IsEncoderFile(p string) bool { return matchesRole(p, encoderPatterns) }

// IsDecoderFile reports whether the path matches a known decoder pattern.
func IsDecoderFile(p string) bool { return matchesRole(p, decoderPatterns) }

// Classify determines the repository architecture from a flat file listing.
//
// Order matters: the pipeline-directory check runs first because a diffusion
// repo usually also contains files that look like encoders/decoders. The >= 2
// directory threshold avoids false positives from a single coincidental
// directory name.
func Classify(files []types.RepoEntry) types.Architecture {
	matched := FilterModelFiles(files)
	if len(matched) == 0 {
		return types.ArchUnknown
	}
	if len(pipelineDirsOf(matched)) >= 2 {
		return types.ArchDiffusionPipeline
	}
	var hasEncoder, hasDecoder bool
	for _, f := range matched {
		if IsEncoderFile(f.Path) {
			hasEncoder = true
		}
		if IsDecoderFile(f.Path) {
			hasDecoder = true
		}
	}
	if hasEncoder && hasDecoder {
		return types.ArchEncoderDecoder
	}
	if len(matched) == 1 {
		return types.ArchSingleModel
	}
	return types.ArchUnknown
}

// PartitionRoles splits model files into encoder and decoder candidates.
// Files matching neither pattern are dropped from role assignment; they may
// still be picked up as config or companion files elsewhere.
func PartitionRoles(modelFiles []types.RepoEntry) (encoders, decoders []types.RepoEntry) {
	for _, f := range modelFiles {
		switch {
		case IsDecoderFile(f.Path):
			decoders = append(decoders, f)
		case IsEncoderFile(f.Path):
			encoders = append(encoders, f)
		}
	}
	return encoders, decoders
}
