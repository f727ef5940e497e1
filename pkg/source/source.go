// Package source enumerates the compiled classes to be lowered.
package source

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const classSuffix = ".class"

// jmodMagic prefixes the zip data of a JDK jmod file.
var jmodMagic = []byte("JM\x01\x00")

// Unit is one compiled class. Name is its identity relative to the source
// root, without the .class suffix, for example "pkg/Outer$1".
type Unit struct {
	Name string
	Data []byte
}

// Source yields classes one at a time.
type Source interface {
	Walk(ctx context.Context, fn func(Unit) error) error
}

// skip reports whether a class entry must be left alone: module
// descriptors and multi-release variants are not lowered.
func skip(name string) bool {
	return name == "module-info" || strings.HasPrefix(name, "META-INF/")
}

// DirSource reads classes from a directory tree.
type DirSource struct {
	Root string
}

// NewDirSource returns a source for the classes below root.
func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

func (s *DirSource) Walk(ctx context.Context, fn func(Unit) error) error {
	return filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, classSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.ToSlash(rel), classSuffix)
		if skip(name) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("dir: reading %s: %w", path, err)
		}
		return fn(Unit{Name: name, Data: data})
	})
}

// ZipSource reads classes from a jar, or from a jmod whose classes live
// under "classes/".
type ZipSource struct {
	Path string
}

// NewZipSource returns a source for the archive at path.
func NewZipSource(path string) *ZipSource {
	return &ZipSource{Path: path}
}

func (s *ZipSource) open() (*zip.Reader, string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, "", fmt.Errorf("zip: reading %s: %w", s.Path, err)
	}
	prefix := ""
	if bytes.HasPrefix(data, jmodMagic) {
		data = data[len(jmodMagic):] // Skip "JM\x01\x00" header
		prefix = "classes/"
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, "", fmt.Errorf("zip: opening %s: %w", s.Path, err)
	}
	return zr, prefix, nil
}

func (s *ZipSource) Walk(ctx context.Context, fn func(Unit) error) error {
	zr, prefix, err := s.open()
	if err != nil {
		return err
	}
	for _, file := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !strings.HasPrefix(file.Name, prefix) || !strings.HasSuffix(file.Name, classSuffix) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(file.Name, prefix), classSuffix)
		if skip(name) {
			continue
		}
		data, err := readEntry(file)
		if err != nil {
			return fmt.Errorf("zip: reading %s: %w", file.Name, err)
		}
		if err := fn(Unit{Name: name, Data: data}); err != nil {
			return err
		}
	}
	return nil
}

func readEntry(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Open picks a source for path: a ZipSource for .jar and .jmod files, a
// DirSource otherwise.
func Open(path string) Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jar", ".jmod", ".zip":
		return NewZipSource(path)
	}
	return NewDirSource(path)
}
