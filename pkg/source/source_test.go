package source

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s Source) map[string]string {
	t.Helper()
	got := map[string]string{}
	err := s.Walk(context.Background(), func(u Unit) error {
		got[u.Name] = string(u.Data)
		return nil
	})
	require.NoError(t, err)
	return got
}

func writeZip(t *testing.T, path string, header []byte, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(header)
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "Outer.class"), []byte("outer"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "Outer$1.class"), []byte("inner"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "module-info.class"), []byte("mod"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	assert.Equal(t, map[string]string{
		"pkg/Outer":   "outer",
		"pkg/Outer$1": "inner",
	}, collect(t, NewDirSource(root)))
}

func TestZipSource(t *testing.T) {
	t.Run("jar", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.jar")
		writeZip(t, path, nil, map[string]string{
			"pkg/Main.class":                      "main",
			"META-INF/MANIFEST.MF":                "Manifest-Version: 1.0",
			"META-INF/versions/11/pkg/Main.class": "v11",
		})
		assert.Equal(t, map[string]string{"pkg/Main": "main"}, collect(t, Open(path)))
	})

	t.Run("jmod", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "java.base.jmod")
		writeZip(t, path, jmodMagic, map[string]string{
			"classes/java/lang/Integer.class": "int",
			"classes/module-info.class":       "mod",
			"lib/libjava.so":                  "so",
		})
		assert.Equal(t, map[string]string{"java/lang/Integer": "int"}, collect(t, Open(path)))
	})

	t.Run("missing", func(t *testing.T) {
		err := NewZipSource(filepath.Join(t.TempDir(), "none.jar")).Walk(context.Background(), func(Unit) error { return nil })
		assert.Error(t, err)
	})
}

func TestWalkStopsOnCallbackError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "A.class"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "B.class"), []byte("b"), 0o644))

	calls := 0
	err := NewDirSource(root).Walk(context.Background(), func(Unit) error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}
