package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DumpReplayer plays back the classes a JVM wrote with
// -Djdk.internal.lambda.dumpProxyClasses=<dir> through its dumper, the way the
// runtime's own dumper would have received them: one MkdirAll for the
// parent directory, then Create, Write and Close per class.
//
// The dumper field is the replayer's extension point; install a shim into it
// with NewFieldHook(replayer, "dumper").
type DumpReplayer struct {
	Dir string

	dumper Backend
}

// NewDumpReplayer returns a replayer for dir.
func NewDumpReplayer(dir string) *DumpReplayer {
	return &DumpReplayer{Dir: dir}
}

// Replay walks Dir and writes every .class file through the installed
// dumper. It returns the number of classes replayed.
func (r *DumpReplayer) Replay(ctx context.Context) (int, error) {
	if r.dumper == nil {
		return 0, errors.New("replay: no dumper installed")
	}
	count := 0
	err := filepath.WalkDir(r.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, classSuffix) {
			return nil
		}
		rel, err := filepath.Rel(r.Dir, path)
		if err != nil {
			return err
		}
		if err := replayFile(r.dumper, path, rel); err != nil {
			return fmt.Errorf("replay %s: %w", rel, err)
		}
		count++
		return nil
	})
	return count, err
}

func replayFile(b Backend, path, rel string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := b.MkdirAll(filepath.Dir(rel)); err != nil {
		return err
	}
	w, err := b.Create(rel)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
