package capture

import (
	"bytes"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
)

const classSuffix = ".class"

// IdentityFromPath turns a dumped path such as "pkg/Outer$$Lambda$1.class"
// into the class identity "pkg/Outer$$Lambda$1". Paths without the suffix
// are returned with only their separators normalized.
func IdentityFromPath(name string) string {
	name = filepath.ToSlash(name)
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	return strings.TrimSuffix(name, classSuffix)
}

// dumper is the fake Backend. Nothing reaches the filesystem; every closed
// channel becomes one call to capture.
type dumper struct {
	capture CaptureFunc
	log     commonlog.Logger
}

func (d *dumper) MkdirAll(string) error { return nil }

func (d *dumper) Create(name string) (io.WriteCloser, error) {
	return &classChannel{name: name, d: d}, nil
}

// classChannel buffers one dumped class.
type classChannel struct {
	name string
	d    *dumper

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (c *classChannel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, fs.ErrClosed
	}
	return c.buf.Write(p)
}

// Close completes the write and hands the class to the capture callback.
// The callback runs without any shim lock held.
func (c *classChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	data := c.buf.Bytes()
	c.mu.Unlock()

	identity := IdentityFromPath(c.name)
	if c.d.capture == nil {
		return nil
	}
	if err := c.d.capture(identity, data); err != nil {
		c.d.log.Errorf("capturing %s: %v", identity, err)
		return err
	}
	return nil
}
