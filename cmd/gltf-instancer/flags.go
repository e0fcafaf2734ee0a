package main

import (
	"flag"
	"strings"

	"github.com/mogaika/gltf-instancer/internal/runconfig"
)

// parsedFlags carries both the flag-only view of the configuration
// (merged, built from runconfig.Default() overridden by every flag's
// final value) and fileBase, the base a --config file should be loaded
// onto, plus setFlags recording which flag names the user actually
// passed — needed because an unset flag's value is indistinguishable
// from an explicitly-passed default otherwise.
type parsedFlags struct {
	merged   runconfig.Config
	fileBase runconfig.Config
	setFlags map[string]bool
}

// parseFlags defines every flag from spec.md §6 (plus the hyphenated
// alias for input/output directory) using the stdlib flag package, in the
// teacher's own flat flag.*Var style (god_of_war_browser.go).
func parseFlags(args []string) (parsedFlags, string, error) {
	def := runconfig.Default()
	fs := flag.NewFlagSet("gltf-instancer", flag.ContinueOnError)

	var (
		inputDirA, inputDirB   string
		outputDirA, outputDirB string
		configPath             string
		logLevel               string
		tolerance              float64
		normalTolerance        float64
		skipAttrHash           string
		mergeAllGLB            bool
		instanceLimit          int
		meshSegmentation       bool
		csvDir                 string
	)

	fs.StringVar(&inputDirA, "input_directory", "", "directory (or tileset.json) to scan for glTF/GLB assets")
	fs.StringVar(&inputDirB, "input-directory", "", "alias of --input_directory")
	fs.StringVar(&outputDirA, "output_directory", "", "directory to write output GLBs into (default <input>/processed_output)")
	fs.StringVar(&outputDirB, "output-directory", "", "alias of --output_directory")
	fs.StringVar(&configPath, "config", "", "key = value config file; explicit flags override its values")
	fs.StringVar(&logLevel, "log-level", def.LogLevel, "NONE, ERROR, WARNING, INFO, DEBUG, or VERBOSE")
	fs.Float64Var(&tolerance, "tolerance", def.Tolerance, "geometry tolerance for tolerance-mode grouping")
	fs.Float64Var(&normalTolerance, "normal-tolerance", def.NormalTolerance, "NORMAL quantization step in tolerance mode (negative clamped to 0)")
	fs.StringVar(&skipAttrHash, "skip-attribute-data-hash", "", "comma-separated attribute names excluded from the signature data hash")
	fs.BoolVar(&mergeAllGLB, "merge-all-glb", def.MergeAllGLB, "merge every output into a single GLB instead of separate instanced and non-instanced GLBs")
	fs.IntVar(&instanceLimit, "instance-limit", def.InstanceLimit, "minimum occurrence count for a shared mesh to be instanced")
	fs.BoolVar(&meshSegmentation, "mesh-segmentation", def.MeshSegmentation, "emit one GLB per mesh instead of grouped output")
	fs.StringVar(&csvDir, "csv-dir", "", "directory to write instancing_analysis.csv into (defaults to --output_directory)")

	if err := fs.Parse(args); err != nil {
		return parsedFlags{}, "", err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if normalTolerance < 0 {
		normalTolerance = 0
	}

	merged := def
	merged.InputDirectory = firstNonEmpty(inputDirB, inputDirA)
	merged.OutputDirectory = firstNonEmpty(outputDirB, outputDirA)
	merged.LogLevel = logLevel
	merged.Tolerance = tolerance
	merged.NormalTolerance = normalTolerance
	merged.MergeAllGLB = mergeAllGLB
	merged.InstanceLimit = instanceLimit
	merged.MeshSegmentation = meshSegmentation
	merged.CSVDir = csvDir
	if skipAttrHash != "" {
		merged.SkipAttributeDataHash = splitAndTrim(skipAttrHash)
	}
	if set["input-directory"] || set["input_directory"] {
		set["input_directory"] = true
	}
	if set["output-directory"] || set["output_directory"] {
		set["output_directory"] = true
	}

	return parsedFlags{merged: merged, fileBase: def, setFlags: set}, configPath, nil
}

// mergeOverFile takes loaded (the config file's values layered on
// runconfig.Default()) and, for every flag the user explicitly passed on
// the command line, overrides the corresponding field with flagView's
// value — flagView already holds exactly that value since it was built
// from the same flags. Flags the user never typed are left as the file
// set them.
func mergeOverFile(loaded, flagView runconfig.Config, set map[string]bool) runconfig.Config {
	out := loaded
	if set["input_directory"] {
		out.InputDirectory = flagView.InputDirectory
	}
	if set["output_directory"] {
		out.OutputDirectory = flagView.OutputDirectory
	}
	if set["log-level"] {
		out.LogLevel = flagView.LogLevel
	}
	if set["tolerance"] {
		out.Tolerance = flagView.Tolerance
	}
	if set["normal-tolerance"] {
		out.NormalTolerance = flagView.NormalTolerance
	}
	if set["skip-attribute-data-hash"] {
		out.SkipAttributeDataHash = flagView.SkipAttributeDataHash
	}
	if set["merge-all-glb"] {
		out.MergeAllGLB = flagView.MergeAllGLB
	}
	if set["instance-limit"] {
		out.InstanceLimit = flagView.InstanceLimit
	}
	if set["mesh-segmentation"] {
		out.MeshSegmentation = flagView.MeshSegmentation
	}
	if set["csv-dir"] {
		out.CSVDir = flagView.CSVDir
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
