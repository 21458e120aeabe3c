package discovery

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"hubd/pkg/types"
)

// configFileNames is the fixed set of configuration/tokenizer assets gathered
// alongside the selected model files.
var configFileNames = []string{
	"config.json",
	"generation_config.json",
	"genai_config.json",
	"tokenizer.json",
	"tokenizer_config.json",
	"special_tokens_map.json",
	"vocab.json",
	"merges.txt",
	"preprocessor_config.json",
	"model_index.json",
	"scheduler_config.json",
}

// Lister is the listing dependency of the engine, satisfied by hub.Client.
type Lister interface {
	ListFiles(ctx context.Context, repoID, revision string) ([]types.RepoEntry, error)
}

// Engine orchestrates classification, subfolder detection and variant
// selection into a DiscoveryResult manifest. An Engine is immutable after
// construction and safe for concurrent use.
type Engine struct {
	lister Lister
	log    zerolog.Logger
}

// NewEngine returns a discovery engine reading listings from lister.
func NewEngine(lister Lister, log zerolog.Logger) *Engine {
	return &Engine{lister: lister, log: log}
}

// Discover resolves the exact file set to fetch for a repository revision
// under the given preferences.
func (e *Engine) Discover(ctx context.Context, repoID, revision string, prefs types.ModelPreferences) (types.DiscoveryResult, error) {
	if revision == "" {
		revision = "main"
	}
	if len(prefs.QuantizationPriority) == 0 {
		prefs.QuantizationPriority = types.DefaultPreferences().QuantizationPriority
	}
	files, err := e.lister.ListFiles(ctx, repoID, revision)
	if err != nil {
		return types.DiscoveryResult{}, fmt.Errorf("list %s: %w", repoID, err)
	}
	modelFiles := FilterModelFiles(files)
	if len(modelFiles) == 0 {
		return types.DiscoveryResult{}, ErrModelNotFound(repoID)
	}

	arch := Classify(files)
	subfolder := ResolveSubfolder(modelFiles, prefs)

	res := types.DiscoveryResult{
		RepoID:       repoID,
		Revision:     revision,
		Subfolder:    subfolder,
		Architecture: arch,
	}

	switch arch {
	case types.ArchDiffusionPipeline:
		res.PrimaryFiles = e.selectPipelineFiles(modelFiles, prefs)
		res.Subfolder = ""
	case types.ArchEncoderDecoder:
		roles := e.selectRoles(modelFiles, prefs)
		res.RoleAssignments = roles
		for _, role := range []types.Role{types.RoleEncoder, types.RoleDecoder} {
			if p, ok := roles[role]; ok {
				res.PrimaryFiles = append(res.PrimaryFiles, p)
			}
		}
	default:
		candidates := filterToSubfolder(modelFiles, subfolder)
		if len(candidates) == 0 {
			candidates = modelFiles
		}
		if picked, ok := SelectBest(candidates, prefs.QuantizationPriority); ok {
			res.PrimaryFiles = []string{picked.Path}
		}
	}

	e.applyOverrides(&res, prefs)
	res.ExternalDataFiles = discoverExternalData(res.PrimaryFiles, files)
	res.ConfigFiles = discoverConfigFiles(files, res.Subfolder)

	e.log.Debug().Str("repo", repoID).Str("revision", revision).
		Str("architecture", string(arch)).Str("subfolder", res.Subfolder).
		Strs("primary", res.PrimaryFiles).Msg("discovery complete")
	return res, nil
}

// filterToSubfolder returns the model files living directly under subfolder,
// or nil when subfolder is empty.
func filterToSubfolder(modelFiles []types.RepoEntry, subfolder string) []types.RepoEntry {
	if subfolder == "" {
		return nil
	}
	prefix := subfolder + "/"
	var out []types.RepoEntry
	for _, f := range modelFiles {
		if strings.HasPrefix(f.Path, prefix) {
			out = append(out, f)
		}
	}
	return out
}

// selectPipelineFiles picks one variant per known pipeline-component
// directory, plus any root-level model files.
func (e *Engine) selectPipelineFiles(modelFiles []types.RepoEntry, prefs types.ModelPreferences) []string {
	var out []string
	for _, dir := range pipelineComponentDirs {
		var candidates []types.RepoEntry
		for _, f := range modelFiles {
			top, _, ok := strings.Cut(f.Path, "/")
			if ok && normalizeDirName(top) == normalizeDirName(dir) {
				candidates = append(candidates, f)
			}
		}
		if picked, ok := SelectBest(candidates, prefs.QuantizationPriority); ok {
			out = append(out, picked.Path)
		}
	}
	var rootLevel []types.RepoEntry
	for _, f := range modelFiles {
		if !strings.Contains(f.Path, "/") {
			rootLevel = append(rootLevel, f)
		}
	}
	if picked, ok := SelectBest(rootLevel, prefs.QuantizationPriority); ok {
		out = append(out, picked.Path)
	}
	return out
}

// selectRoles picks the decoder first (variant priority ahead of precision),
// then the encoder, optionally constrained to the decoder's quantization.
func (e *Engine) selectRoles(modelFiles []types.RepoEntry, prefs types.ModelPreferences) map[types.Role]string {
	encoders, decoders := PartitionRoles(modelFiles)
	roles := make(map[types.Role]string, 2)
	var decoderQuant types.Quantization
	if dec, ok := SelectDecoder(decoders, prefs.DecoderPriority, prefs.QuantizationPriority); ok {
		roles[types.RoleDecoder] = dec.Path
		decoderQuant = QuantOf(dec.Path)
	}
	if prefs.MatchQuantAcrossRoles {
		if enc, ok := SelectEncoderMatching(encoders, decoderQuant, prefs.QuantizationPriority); ok {
			roles[types.RoleEncoder] = enc.Path
		}
	} else if enc, ok := SelectBest(encoders, prefs.QuantizationPriority); ok {
		roles[types.RoleEncoder] = enc.Path
	}
	return roles
}

// applyOverrides replaces auto-selected files with explicit per-role choices.
// Explicit beats heuristic, always.
func (e *Engine) applyOverrides(res *types.DiscoveryResult, prefs types.ModelPreferences) {
	for role, p := range prefs.FileOverrides {
		if p == "" {
			continue
		}
		if res.RoleAssignments == nil {
			res.RoleAssignments = make(map[types.Role]string)
		}
		old, had := res.RoleAssignments[role]
		res.RoleAssignments[role] = p
		replaced := false
		for i, existing := range res.PrimaryFiles {
			if had && existing == old {
				res.PrimaryFiles[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			res.PrimaryFiles = append(res.PrimaryFiles, p)
		}
	}
	// A single-model override is keyed by the decoder role by convention; for
	// non-role architectures an override simply replaces the whole selection.
	if len(prefs.FileOverrides) > 0 && res.Architecture != types.ArchEncoderDecoder && res.Architecture != types.ArchDiffusionPipeline {
		if p, ok := prefs.FileOverrides[types.RoleDecoder]; ok && p != "" {
			res.PrimaryFiles = []string{p}
			res.RoleAssignments = nil
		}
	}
}

// discoverExternalData finds weight companions of each primary file: a
// ".data" sibling, a "_data" sibling, and numbered "_data_N" chunks. Chunks
// are emitted in ascending numeric order; a lexicographic sort would misplace
// "_data_10" before "_data_2". Chunk probing stops at the first missing index.
func discoverExternalData(primaries []string, files []types.RepoEntry) []string {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f.Path] = true
	}
	var out []string
	for _, p := range primaries {
		for _, suffix := range []string{".data", "_data"} {
			if present[p+suffix] {
				out = append(out, p+suffix)
			}
		}
		for i := 0; ; i++ {
			chunk := p + "_data_" + strconv.Itoa(i)
			if !present[chunk] {
				break
			}
			out = append(out, chunk)
		}
	}
	return out
}

// discoverConfigFiles unions config matches found in the repository root, the
// selected subfolder, and the known pipeline directories, deduplicated.
func discoverConfigFiles(files []types.RepoEntry, subfolder string) []string {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		if !f.IsDirectory {
			present[f.Path] = true
		}
	}
	locations := []string{""}
	if subfolder != "" {
		locations = append(locations, subfolder)
	}
	locations = append(locations, pipelineComponentDirs...)

	seen := make(map[string]bool)
	var out []string
	for _, loc := range locations {
		for _, name := range configFileNames {
			p := name
			if loc != "" {
				p = loc + "/" + name
			}
			if present[p] && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}
