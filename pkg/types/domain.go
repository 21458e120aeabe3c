package types

import "time"

// Quantization identifies a precision/size variant of a model file.
type Quantization string

const (
	// QuantDefault matches files carrying no recognized precision suffix.
	QuantDefault Quantization = "default"
	QuantFp16    Quantization = "fp16"
	QuantInt8    Quantization = "int8"
	QuantInt4    Quantization = "int4"
)

// DevicePreference expresses which execution device the caller wants.
// DeviceAuto lets the resolver build a hardware-aware fallback chain.
type DevicePreference string

const (
	DeviceAuto     DevicePreference = "auto"
	DeviceCpu      DevicePreference = "cpu"
	DeviceCuda     DevicePreference = "cuda"
	DeviceDirectML DevicePreference = "dml"
	DeviceCoreML   DevicePreference = "coreml"
)

// DecoderVariant distinguishes decoder export flavors of encoder-decoder models.
type DecoderVariant string

const (
	DecoderMerged   DecoderVariant = "merged"
	DecoderStandard DecoderVariant = "standard"
	DecoderWithPast DecoderVariant = "with_past"
)

// Role names a logical component slot of a resolved model.
type Role string

const (
	RoleEncoder Role = "encoder"
	RoleDecoder Role = "decoder"
)

// RepoEntry is one file or directory in a remote model repository listing.
// Entries are immutable once produced.
type RepoEntry struct {
	Path        string `json:"path"`
	SizeBytes   int64  `json:"size"`
	IsDirectory bool   `json:"is_directory,omitempty"`
}

// ModelPreferences carries per-resolution caller preferences. The zero value
// is usable: DefaultPreferences fills in the standard priority orders.
type ModelPreferences struct {
	// Quantization levels in descending preference order.
	QuantizationPriority []Quantization `json:"quantization_priority,omitempty"`
	// Decoder export variants in descending preference order.
	DecoderPriority []DecoderVariant `json:"decoder_priority,omitempty"`
	// Preferred execution device; influences subfolder detection.
	DevicePreference DevicePreference `json:"device_preference,omitempty"`
	// Explicit repository subfolder; skips subfolder detection when set.
	Subfolder string `json:"subfolder,omitempty"`
	// Explicit per-role file paths; replace auto-selected files unconditionally.
	FileOverrides map[Role]string `json:"file_overrides,omitempty"`
	// Constrain the encoder selection to the decoder's quantization suffix.
	MatchQuantAcrossRoles bool `json:"match_quant_across_roles,omitempty"`
}

// DefaultPreferences returns the standard preference orders used when the
// caller does not supply their own.
func DefaultPreferences() ModelPreferences {
	return ModelPreferences{
		QuantizationPriority: []Quantization{QuantDefault, QuantFp16, QuantInt8, QuantInt4},
		DecoderPriority:      []DecoderVariant{DecoderMerged, DecoderStandard, DecoderWithPast},
		DevicePreference:     DeviceAuto,
	}
}

// Architecture is the detected shape of a model repository.
type Architecture string

const (
	ArchUnknown           Architecture = "unknown"
	ArchSingleModel       Architecture = "single_model"
	ArchEncoderDecoder    Architecture = "encoder_decoder"
	ArchDiffusionPipeline Architecture = "diffusion_pipeline"
)

// DiscoveryResult is the manifest of files to fetch for one resolution.
// Every path is relative to the repository root and present in the listing
// the result was derived from. Immutable once returned.
type DiscoveryResult struct {
	RepoID       string       `json:"repo_id"`
	Revision     string       `json:"revision"`
	Subfolder    string       `json:"subfolder,omitempty"`
	Architecture Architecture `json:"architecture"`
	// Model files, in selection order.
	PrimaryFiles []string `json:"primary_files"`
	// External weight companions of the primary files (chunks in numeric order).
	ExternalDataFiles []string `json:"external_data_files,omitempty"`
	// Configuration/tokenizer assets, deduplicated.
	ConfigFiles []string `json:"config_files,omitempty"`
	// Encoder/decoder slots, only for encoder-decoder repositories.
	RoleAssignments map[Role]string `json:"role_assignments,omitempty"`
}

// AllFiles returns every path in the manifest, primaries first.
func (d DiscoveryResult) AllFiles() []string {
	out := make([]string, 0, len(d.PrimaryFiles)+len(d.ExternalDataFiles)+len(d.ConfigFiles))
	out = append(out, d.PrimaryFiles...)
	out = append(out, d.ExternalDataFiles...)
	out = append(out, d.ConfigFiles...)
	return out
}

// BackendKind identifies one native execution backend family.
type BackendKind string

const (
	BackendCpu      BackendKind = "cpu"
	BackendCuda12   BackendKind = "cuda12"
	BackendCuda13   BackendKind = "cuda13"
	BackendDirectML BackendKind = "directml"
	BackendVulkan   BackendKind = "vulkan"
	BackendMetal    BackendKind = "metal"
	BackendCoreML   BackendKind = "coreml"
)

// BackendCandidate is one entry of a fallback chain. ProviderToken keys the
// native binary set downloaded for this backend.
type BackendCandidate struct {
	Kind          BackendKind `json:"kind"`
	ProviderToken string      `json:"provider_token"`
}

// CachedModel describes one locally cached model snapshot.
type CachedModel struct {
	RepoID       string    `json:"repo_id"`
	Revision     string    `json:"revision"`
	Path         string    `json:"path"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}
