// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package coverage

import (
	"path"
	"path/filepath"
	"strings"
)

// Root is the directory raster paths are stored relative to. The empty root
// stores paths as given.
type Root string

// Split returns the directory relative to the root, the file name without
// extension and the extension without dot of a raster path. Relative paths
// are relative to the root.
func (root Root) Split(file string) (directory, filename, extension string, err error) {
	if file == "" {
		return "", "", "", Error.New("empty raster path")
	}

	rel := filepath.Clean(file)
	if root != "" {
		if !filepath.IsAbs(rel) {
			rel = filepath.Join(string(root), rel)
		}
		rel, err = filepath.Rel(filepath.Clean(string(root)), rel)
		if err != nil {
			return "", "", "", Error.Wrap(err)
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", "", "", Error.New("%q is outside of root %q", file, string(root))
		}
	}

	directory = filepath.ToSlash(filepath.Dir(rel))
	if directory == "." {
		directory = ""
	}
	base := filepath.Base(rel)
	ext := filepath.Ext(base)
	return directory, strings.TrimSuffix(base, ext), strings.TrimPrefix(ext, "."), nil
}

// Resolve returns the file system location of a raster file.
func (root Root) Resolve(directory, filename, extension string) string {
	rel := filepath.FromSlash(RelativePath(directory, filename, extension))
	if root == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(string(root), rel)
}

// Key returns the root-relative identifier of a raster file, used as cache
// key and for removals by path.
func (root Root) Key(file string) (string, error) {
	directory, filename, extension, err := root.Split(file)
	if err != nil {
		return "", err
	}
	return RelativePath(directory, filename, extension), nil
}

// RelativePath joins the parts returned by Root.Split.
func RelativePath(directory, filename, extension string) string {
	name := filename
	if extension != "" {
		name += "." + extension
	}
	return path.Join(directory, name)
}
