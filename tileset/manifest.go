// Package tileset writes the companion 3D-Tiles tileset.json manifest for
// a directory of instanced GLB output. Grounded on
// original_source/CPPAlgorithm/src/tileset_writer.cpp's TilesetWriter::
// writeTileset: one child tile per emitted GLB carrying its content.uri,
// "REPLACE" refine, and a root boundingVolume.box that is the union of
// every child's box. The original also applies a fixed glTF-Y-up ->
// Cesium-Z-up axis swap and a hardcoded ECEF placement transform; neither
// is reproduced here — this writer stays in the asset's own coordinate
// space (see SPEC_FULL.md §6), so only the box union and content wiring
// survive.
package tileset

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/mogaika/gltf-instancer/internal/xerrors"
	"github.com/mogaika/gltf-instancer/xform"
)

// DefaultGeometricError matches the 500.0 default of the original
// writeTileset's geometricError parameter.
const DefaultGeometricError = 500.0

// TileRef describes one emitted GLB to be referenced from the manifest.
type TileRef struct {
	URI  string
	BBox xform.BoundingBox
}

type asset struct {
	Version string `json:"version"`
}

type boundingVolume struct {
	Box [12]float64 `json:"box"`
}

type content struct {
	URI string `json:"uri"`
}

type tile struct {
	BoundingVolume *boundingVolume `json:"boundingVolume,omitempty"`
	GeometricError float64         `json:"geometricError"`
	Refine         string          `json:"refine,omitempty"`
	Content        *content        `json:"content,omitempty"`
	Children       []tile          `json:"children,omitempty"`
}

type document struct {
	Asset          asset   `json:"asset"`
	GeometricError float64 `json:"geometricError"`
	Root           tile    `json:"root"`
}

// WriteManifest writes a single-level tileset.json at path: one child tile
// per entry in tiles (each with its own content.uri and, when its BBox is
// valid, its own boundingVolume.box), under a root tile whose
// boundingVolume.box is the union of every valid child box and whose
// refine is "REPLACE". Every tile carries geometricError; refine is set
// on the root only, and the children inherit it.
func WriteManifest(path string, tiles []TileRef, geometricError float64) xerrors.List {
	var errs xerrors.List
	if geometricError <= 0 {
		geometricError = DefaultGeometricError
	}

	root := tile{
		GeometricError: geometricError,
		Refine:         "REPLACE",
	}

	union := xform.EmptyBoundingBox()
	for _, t := range tiles {
		child := tile{
			GeometricError: geometricError,
			Content:        &content{URI: t.URI},
		}
		if t.BBox.IsValid() {
			box := t.BBox.ToTilesetBox()
			child.BoundingVolume = &boundingVolume{Box: box}
			union = union.Merge(t.BBox)
		}
		root.Children = append(root.Children, child)
	}
	if union.IsValid() {
		box := union.ToTilesetBox()
		root.BoundingVolume = &boundingVolume{Box: box}
	}

	doc := document{
		Asset:          asset{Version: "1.1"},
		GeometricError: geometricError,
		Root:           root,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		errs.Add(xerrors.New(xerrors.Write, path, errors.Wrap(err, "marshaling tileset.json")))
		return errs
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		errs.Add(xerrors.New(xerrors.Write, path, errors.Wrap(err, "writing tileset.json")))
	}
	return errs
}
