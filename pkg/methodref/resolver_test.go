package methodref

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIdentity(t *testing.T) {
	r := NewResolver()
	ref := Ref{Owner: "Outer", Name: "run", Desc: "()V"}
	assert.Equal(t, ref, r.Resolve(ref))
	assert.Equal(t, 0, r.Len())
}

func TestRecordAndResolve(t *testing.T) {
	r := NewResolver()
	pairs := map[Ref]Ref{
		{Owner: "Shape", Name: "lambda$describe$0", Desc: "()V"}: {Owner: "Shape$", Name: "lambda$describe$0", Desc: "(LShape;)V"},
		{Owner: "Shape", Name: "create", Desc: "()LShape;"}:      {Owner: "Shape$", Name: "create", Desc: "()LShape;"},
	}
	for orig, renamed := range pairs {
		r.Record(orig, renamed)
	}
	for orig, renamed := range pairs {
		assert.Equal(t, renamed, r.Resolve(orig), "resolving %s", orig)
	}

	// 同じ名前でも descriptor が違えば別の参照
	other := Ref{Owner: "Shape", Name: "create", Desc: "(I)LShape;"}
	assert.Equal(t, other, r.Resolve(other))
}

func TestRecordMostRecentWins(t *testing.T) {
	r := NewResolver()
	orig := Ref{Owner: "A", Name: "m", Desc: "()V"}
	r.Record(orig, Ref{Owner: "B", Name: "m", Desc: "()V"})
	r.Record(orig, Ref{Owner: "C", Name: "m", Desc: "()V"})

	assert.Equal(t, Ref{Owner: "C", Name: "m", Desc: "()V"}, r.Resolve(orig))
	assert.Equal(t, 1, r.Len())
}

func TestEntriesSorted(t *testing.T) {
	r := NewResolver()
	r.Record(Ref{Owner: "B", Name: "m", Desc: "()V"}, Ref{Owner: "B$", Name: "m", Desc: "()V"})
	r.Record(Ref{Owner: "A", Name: "m", Desc: "()V"}, Ref{Owner: "A$", Name: "m", Desc: "()V"})

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0].Original.Owner)
	assert.Equal(t, "B", entries[1].Original.Owner)
}

func TestConcurrentAccess(t *testing.T) {
	r := NewResolver()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orig := Ref{Owner: fmt.Sprintf("C%d", i), Name: "m", Desc: "()V"}
			r.Record(orig, Ref{Owner: orig.Owner + "$", Name: "m", Desc: "()V"})
			_ = r.Resolve(orig)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, r.Len())
}

func TestRefString(t *testing.T) {
	assert.Equal(t, "pkg/Outer.run(I)V", Ref{Owner: "pkg/Outer", Name: "run", Desc: "(I)V"}.String())
}
