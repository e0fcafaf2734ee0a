// Command gltf-instancer scans a directory (or mines a 3D-Tiles
// tileset.json) for glTF/GLB assets, detects structurally-identical
// meshes across them, and rewrites the shared ones with
// EXT_mesh_gpu_instancing to cut node and draw-call count. CLI surface
// per spec.md §6, in the teacher's own flat flag.*Var style
// (god_of_war_browser.go, now removed and replaced by this entry point).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"

	"github.com/mogaika/gltf-instancer/assemble"
	"github.com/mogaika/gltf-instancer/instancing"
	"github.com/mogaika/gltf-instancer/internal/logx"
	"github.com/mogaika/gltf-instancer/internal/runconfig"
	"github.com/mogaika/gltf-instancer/internal/xerrors"
	"github.com/mogaika/gltf-instancer/loadmodel"
	"github.com/mogaika/gltf-instancer/meshsig"
	"github.com/mogaika/gltf-instancer/report"
	"github.com/mogaika/gltf-instancer/tileset"
	"github.com/mogaika/gltf-instancer/xform"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, configPath, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gltf-instancer:", err)
		return 1
	}

	if configPath != "" {
		loaded, errs := runconfig.LoadFile(configPath, cfg.fileBase)
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "gltf-instancer:", e)
		}
		if errs.HasFatal() {
			return 1
		}
		cfg.merged = mergeOverFile(loaded, cfg.merged, cfg.setFlags)
	}
	final := cfg.merged

	if final.InputDirectory == "" {
		fmt.Fprintln(os.Stderr, "gltf-instancer: --input_directory is required")
		return 1
	}
	if final.OutputDirectory == "" {
		final.OutputDirectory = filepath.Join(final.InputDirectory, "processed_output")
	}
	if final.CSVDir == "" {
		final.CSVDir = final.OutputDirectory
	}
	if final.InstanceLimit < 1 {
		fmt.Fprintln(os.Stderr, "gltf-instancer: --instance-limit must be >= 1")
		return 1
	}

	log := logx.New(logx.ParseLevel(final.LogLevel))
	defer log.Sync()

	return pipeline(final, log)
}

func pipeline(cfg runconfig.Config, log *logx.Logger) int {
	paths, errs := discoverInputs(cfg.InputDirectory)
	logErrors(log, errs)
	if len(paths) == 0 {
		log.Errorf("no .glb/.gltf assets found under %s", cfg.InputDirectory)
		return 1
	}

	reg := loadmodel.NewRegistry(log)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			log.Warnf("skipping %s: %v", p, err)
			continue
		}
		if _, errs := reg.Load(p, data); !errs.Clean() {
			logErrors(log, errs)
		}
	}

	if err := os.MkdirAll(cfg.OutputDirectory, 0o755); err != nil {
		log.Errorf("creating output directory: %v", err)
		return 1
	}

	if cfg.MeshSegmentation {
		return runSegmentation(cfg, reg, log)
	}
	return runGrouping(cfg, reg, log)
}

func runGrouping(cfg runconfig.Config, reg *loadmodel.Registry, log *logx.Logger) int {
	hasher := &meshsig.Hasher{
		Mode:                  meshsig.Exact,
		NormalTolerance:       cfg.NormalTolerance,
		GeometryTolerance:     cfg.Tolerance,
		SkipAttributeDataHash: toAttrSet(cfg.SkipAttributeDataHash),
	}
	if cfg.Tolerance > 0 || cfg.NormalTolerance > 0 {
		hasher.Mode = meshsig.Tolerance
	}
	cache := meshsig.NewCache(hasher)
	walker := &instancing.Walker{Cache: cache, Hasher: hasher}

	var occs []instancing.Occurrence
	for _, model := range reg.Models() {
		modelOccs, errs := walker.Walk(model)
		logErrors(log, errs)
		occs = append(occs, modelOccs...)
	}

	res := instancing.GroupOccurrences(occs, hasher, cfg.InstanceLimit, reg)
	log.Infof("%d instanced groups, %d non-instanced meshes", len(res.Instanced), len(res.NonInstanced))

	var tiles []tileset.TileRef
	fatal := false

	if cfg.MergeAllGLB {
		doc, bbox, errs := assemble.Run(reg, res, assemble.Full)
		logErrors(log, errs)
		if uri, ok := writeGLB(cfg.OutputDirectory, "merged.glb", doc, log); ok {
			tiles = append(tiles, tileset.TileRef{URI: uri, BBox: bbox})
		} else {
			fatal = true
		}
	} else {
		instDoc, instBBox, errs := assemble.Run(reg, res, assemble.InstancedOnly)
		logErrors(log, errs)
		if len(instDoc.Nodes) > 0 {
			if uri, ok := writeGLB(cfg.OutputDirectory, "instanced.glb", instDoc, log); ok {
				tiles = append(tiles, tileset.TileRef{URI: uri, BBox: instBBox})
			}
		}

		nonInstDoc, nonInstBBox, errs := assemble.Run(reg, res, assemble.NonInstancedOnly)
		logErrors(log, errs)
		if len(nonInstDoc.Nodes) > 0 {
			if uri, ok := writeGLB(cfg.OutputDirectory, "non_instanced.glb", nonInstDoc, log); ok {
				tiles = append(tiles, tileset.TileRef{URI: uri, BBox: nonInstBBox})
			}
		}
	}

	if errs := tileset.WriteManifest(filepath.Join(cfg.OutputDirectory, "tileset.json"), tiles, tileset.DefaultGeometricError); !errs.Clean() {
		logErrors(log, errs)
	}

	analysis := report.Analyze(reg, res)
	if errs := report.WriteFile(filepath.Join(cfg.CSVDir, "instancing_analysis.csv"), analysis); !errs.Clean() {
		logErrors(log, errs)
	}

	if fatal {
		return 1
	}
	return 0
}

func runSegmentation(cfg runconfig.Config, reg *loadmodel.Registry, log *logx.Logger) int {
	segments, errs := assemble.Segment(reg)
	logErrors(log, errs)

	var tiles []tileset.TileRef
	for _, seg := range segments {
		if _, ok := writeGLB(cfg.OutputDirectory, seg.FileName, seg.Doc, log); ok {
			tiles = append(tiles, tileset.TileRef{URI: seg.FileName, BBox: xform.EmptyBoundingBox()})
		}
	}

	if errs := tileset.WriteManifest(filepath.Join(cfg.OutputDirectory, "tileset.json"), tiles, tileset.DefaultGeometricError); !errs.Clean() {
		logErrors(log, errs)
	}

	return 0
}

// writeGLB encodes doc and writes it to dir/name, returning the bare
// filename for use as a tileset content.uri.
func writeGLB(dir, name string, doc *gltf.Document, log *logx.Logger) (string, bool) {
	data, errs := assemble.EncodeGLB(doc)
	logErrors(log, errs)
	if !errs.Clean() {
		return "", false
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Errorf("writing %s: %v", path, err)
		return "", false
	}
	return name, true
}

func logErrors(log *logx.Logger, errs xerrors.List) {
	for _, e := range errs {
		if e.Kind == xerrors.Config || e.Kind == xerrors.Write {
			log.Errorf("%v", e)
		} else {
			log.Debugf("%v", e)
		}
	}
}

func toAttrSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			set[n] = true
		}
	}
	return set
}

func discoverInputs(inputDir string) ([]string, xerrors.List) {
	info, err := os.Stat(inputDir)
	if err != nil {
		var errs xerrors.List
		errs.Add(xerrors.New(xerrors.IO, inputDir, err))
		return nil, errs
	}
	if !info.IsDir() && strings.EqualFold(filepath.Base(inputDir), "tileset.json") {
		return loadmodel.MineTileset(inputDir)
	}
	return loadmodel.EnumerateDirectory(inputDir)
}
