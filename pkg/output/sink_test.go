package output

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSink(t *testing.T) {
	root := t.TempDir()
	sink := NewDirSink(root)

	require.NoError(t, sink.Write("pkg/Outer$$Lambda$1", []byte("first")))
	require.NoError(t, sink.Write("pkg/Outer$$Lambda$1", []byte("second")))

	data, err := os.ReadFile(filepath.Join(root, "pkg", "Outer$$Lambda$1.class"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestSinkRejectsEscapingIdentity(t *testing.T) {
	sinks := map[string]Sink{
		"dir":    NewDirSink(t.TempDir()),
		"memory": NewMemorySink(),
	}
	for name, sink := range sinks {
		for _, bad := range []string{"", "/abs/Foo", "../Foo", "a/../../Foo", "a//b"} {
			assert.Error(t, sink.Write(bad, nil), "%s sink accepted %q", name, bad)
		}
	}
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	buf := []byte("abc")
	require.NoError(t, sink.Write("B", buf))
	require.NoError(t, sink.Write("A", []byte("x")))
	buf[0] = 'z'

	got, ok := sink.Get("B")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got), "sink must keep its own copy")
	assert.Equal(t, []string{"A", "B"}, sink.Names())
	assert.Equal(t, 2, sink.Len())

	_, ok = sink.Get("C")
	assert.False(t, ok)
}

func TestJarSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "app.jar")
	sink := NewJarSink(path)
	require.NoError(t, sink.Write("pkg/Main", []byte("main")))
	require.NoError(t, sink.Write("pkg/Main$$Lambda$1", []byte("old")))
	require.NoError(t, sink.Write("pkg/Main$$Lambda$1", []byte("new")))
	require.NoError(t, sink.Close())

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	contents := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		contents[f.Name] = string(data)
	}
	assert.Equal(t, map[string]string{
		"pkg/Main.class":           "main",
		"pkg/Main$$Lambda$1.class": "new",
	}, contents)
}
