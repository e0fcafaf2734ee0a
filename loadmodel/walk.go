package loadmodel

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/gltf-instancer/internal/xerrors"
)

// EnumerateDirectory walks root recursively and returns every file whose
// extension is .glb or .gltf (case-insensitive), sorted by the order
// filepath.WalkDir visits them in (lexical per directory level). There is
// no directory-enumeration library anywhere in the example pack, so this
// uses filepath.WalkDir directly — see DESIGN.md.
func EnumerateDirectory(root string) ([]string, xerrors.List) {
	var errs xerrors.List
	var found []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs.Add(xerrors.New(xerrors.IO, path, errors.Wrap(err, "walking input directory")))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".glb", ".gltf":
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		errs.Add(xerrors.New(xerrors.IO, root, errors.Wrap(err, "walking input directory")))
	}

	return found, errs
}

// MineTileset reads a 3D-Tiles tileset.json at path and returns every
// referenced model URI resolved to a filesystem path relative to the
// tileset's directory, restricted to files that actually exist and end in
// .glb or .gltf. 3D-Tiles has no fixed schema location for content URIs
// in every profile variant (they appear at "root.content.uri",
// "root.children[].content.uri", legacy "content.url", and tile-set
// variants nest arbitrarily deep), so this walks the decoded JSON value
// generically rather than binding a tileset struct, per spec.md §4.A.
func MineTileset(path string) ([]string, xerrors.List) {
	var errs xerrors.List

	raw, err := os.ReadFile(path)
	if err != nil {
		errs.Add(xerrors.New(xerrors.IO, path, errors.Wrap(err, "reading tileset")))
		return nil, errs
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		errs.Add(xerrors.New(xerrors.Parse, path, errors.Wrap(err, "parsing tileset JSON")))
		return nil, errs
	}

	base := filepath.Dir(path)
	seen := make(map[string]struct{})
	var out []string

	var walk func(v interface{}, key string)
	walk = func(v interface{}, key string) {
		switch val := v.(type) {
		case map[string]interface{}:
			for k, child := range val {
				walk(child, k)
			}
		case []interface{}:
			for _, child := range val {
				walk(child, key)
			}
		case string:
			if key != "uri" && key != "url" {
				return
			}
			ext := strings.ToLower(filepath.Ext(val))
			if ext != ".glb" && ext != ".gltf" {
				return
			}
			resolved := val
			if !filepath.IsAbs(resolved) {
				resolved = filepath.Join(base, resolved)
			}
			if _, ok := seen[resolved]; ok {
				return
			}
			if _, err := os.Stat(resolved); err != nil {
				return
			}
			seen[resolved] = struct{}{}
			out = append(out, resolved)
		}
	}
	walk(doc, "")

	return out, errs
}
