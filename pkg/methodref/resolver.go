// Package methodref tracks methods that were renamed or relocated while
// lowering class files, so that later passes can rewrite references to them.
package methodref

import (
	"fmt"
	"sort"
	"sync"
)

// Ref identifies a method by owner class, name and descriptor.
type Ref struct {
	Owner string
	Name  string
	Desc  string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s.%s%s", r.Owner, r.Name, r.Desc)
}

// Resolver maps original method references to their current ones.
//
// A Resolver belongs to a single transformation run. It is safe for
// concurrent use.
type Resolver struct {
	mu      sync.RWMutex
	renamed map[Ref]Ref
}

// NewResolver returns an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{renamed: make(map[Ref]Ref)}
}

// Record registers that original is now known as renamed. A later Record
// for the same original replaces the earlier one.
func (r *Resolver) Record(original, renamed Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renamed[original] = renamed
}

// Resolve returns the current reference for ref, or ref itself if it was
// never renamed.
func (r *Resolver) Resolve(ref Ref) Ref {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if renamed, ok := r.renamed[ref]; ok {
		return renamed
	}
	return ref
}

// Len returns the number of recorded renames.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.renamed)
}

// Rename is one recorded mapping.
type Rename struct {
	Original Ref
	Renamed  Ref
}

// Entries returns all recorded renames sorted by original reference.
func (r *Resolver) Entries() []Rename {
	r.mu.RLock()
	out := make([]Rename, 0, len(r.renamed))
	for orig, renamed := range r.renamed {
		out = append(out, Rename{Original: orig, Renamed: renamed})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Original.String() < out[j].Original.String()
	})
	return out
}
