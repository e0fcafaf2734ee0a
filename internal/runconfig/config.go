// Package runconfig loads the tool's run configuration from a
// `--config` file and merges it with explicit command-line flags.
// Grounded on spec.md §6's file grammar ("key = value" lines, one per
// line, blank lines and `#` comments skipped) — a plain line grammar, not
// a structured format, so this reads it with bufio.Scanner and
// strings.Cut rather than pulling in the pack's gopkg.in/yaml.v3 (see
// DESIGN.md).
package runconfig

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/gltf-instancer/internal/xerrors"
)

// Config holds every value the CLI surface in spec.md §6 can set, after
// merging a --config file (if any) with explicit flags.
type Config struct {
	InputDirectory  string
	OutputDirectory string

	LogLevel string

	Tolerance             float64
	NormalTolerance       float64
	SkipAttributeDataHash []string

	MergeAllGLB      bool
	InstanceLimit    int
	MeshSegmentation bool

	CSVDir string
}

// Default returns a Config holding spec.md §6's documented defaults.
func Default() Config {
	return Config{
		LogLevel:      "INFO",
		InstanceLimit: 2,
	}
}

// LoadFile reads a key = value config file and merges its values onto
// base, returning the merged Config. File values are overridden later by
// explicit CLI flags (the command's mergeOverFile) — base is typically
// Default().
func LoadFile(path string, base Config) (Config, xerrors.List) {
	var errs xerrors.List
	if path == "" {
		return base, errs
	}

	f, err := os.Open(path)
	if err != nil {
		errs.Add(xerrors.New(xerrors.Config, path, errors.Wrap(err, "opening config file")))
		return base, errs
	}
	defer f.Close()

	cfg := base
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			errs.Add(xerrors.Newf(xerrors.Config, path, "line %d: expected key = value, got %q", lineNo, line))
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if err := cfg.set(key, value); err != nil {
			errs.Add(xerrors.New(xerrors.Config, path, errors.Wrapf(err, "line %d (%s)", lineNo, key)))
		}
	}
	if err := scanner.Err(); err != nil {
		errs.Add(xerrors.New(xerrors.Config, path, errors.Wrap(err, "reading config file")))
	}

	return cfg, errs
}

// set applies one key = value pair, using spec.md §6's flag names
// (underscores or hyphens, either is accepted, matching the CLI's own
// dual-form flags for input/output directory).
func (c *Config) set(key, value string) error {
	switch normalizeKey(key) {
	case "input_directory":
		c.InputDirectory = value
	case "output_directory":
		c.OutputDirectory = value
	case "log_level":
		c.LogLevel = value
	case "tolerance":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrap(err, "parsing tolerance")
		}
		c.Tolerance = f
	case "normal_tolerance":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrap(err, "parsing normal-tolerance")
		}
		if f < 0 {
			f = 0
		}
		c.NormalTolerance = f
	case "skip_attribute_data_hash":
		c.SkipAttributeDataHash = splitCSV(value)
	case "merge_all_glb":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrap(err, "parsing merge-all-glb")
		}
		c.MergeAllGLB = b
	case "instance_limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrap(err, "parsing instance-limit")
		}
		if n < 1 {
			return errors.Errorf("instance-limit must be >= 1, got %d", n)
		}
		c.InstanceLimit = n
	case "mesh_segmentation":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrap(err, "parsing mesh-segmentation")
		}
		c.MeshSegmentation = b
	case "csv_dir":
		c.CSVDir = value
	default:
		return errors.Errorf("unknown config key %q", key)
	}
	return nil
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "-", "_")
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
