// Package output persists transformed class files keyed by class identity.
package output

import (
	"archive/zip"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const classSuffix = ".class"

// Sink stores a class under its identity, such as "pkg/Outer$$Lambda$1".
// Writing the same identity twice keeps the last write.
type Sink interface {
	Write(identity string, data []byte) error
}

// checkIdentity rejects identities that would escape the output root.
func checkIdentity(identity string) error {
	if identity == "" {
		return fmt.Errorf("empty class identity")
	}
	if strings.HasPrefix(identity, "/") || path.Clean(identity) != identity {
		return fmt.Errorf("invalid class identity %q", identity)
	}
	for _, part := range strings.Split(identity, "/") {
		if part == ".." {
			return fmt.Errorf("invalid class identity %q", identity)
		}
	}
	return nil
}

// DirSink writes classes below Root as <identity>.class.
type DirSink struct {
	Root string
}

// NewDirSink returns a sink writing below root.
func NewDirSink(root string) *DirSink {
	return &DirSink{Root: root}
}

func (s *DirSink) Write(identity string, data []byte) error {
	if err := checkIdentity(identity); err != nil {
		return err
	}
	file := filepath.Join(s.Root, filepath.FromSlash(identity)+classSuffix)
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", identity, err)
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", identity, err)
	}
	return nil
}

// MemorySink keeps classes in memory.
type MemorySink struct {
	mu    sync.Mutex
	units map[string][]byte
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{units: make(map[string][]byte)}
}

func (s *MemorySink) Write(identity string, data []byte) error {
	if err := checkIdentity(identity); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[identity] = append([]byte(nil), data...)
	return nil
}

// Get returns the bytes stored for identity.
func (s *MemorySink) Get(identity string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.units[identity]
	return data, ok
}

// Names returns the stored identities in sorted order.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.units))
	for name := range s.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of stored classes.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.units)
}

// JarSink collects classes and writes them as a jar when closed. Entries are
// buffered so the last write of an identity wins.
type JarSink struct {
	Path string
	mem  *MemorySink
}

// NewJarSink returns a sink that writes the jar at path on Close.
func NewJarSink(path string) *JarSink {
	return &JarSink{Path: path, mem: NewMemorySink()}
}

func (s *JarSink) Write(identity string, data []byte) error {
	return s.mem.Write(identity, data)
}

// Close writes the jar file.
func (s *JarSink) Close() error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("jar: creating directory for %s: %w", s.Path, err)
	}
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("jar: creating %s: %w", s.Path, err)
	}
	zw := zip.NewWriter(f)
	for _, name := range s.mem.Names() {
		data, _ := s.mem.Get(name)
		w, err := zw.Create(name + classSuffix)
		if err != nil {
			f.Close()
			return fmt.Errorf("jar: adding %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("jar: writing %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("jar: finishing %s: %w", s.Path, err)
	}
	return f.Close()
}
