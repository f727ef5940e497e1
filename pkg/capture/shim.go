// Package capture intercepts the class files that a code generator writes
// through a pluggable storage backend, so that synthesized lambda classes
// can be lowered and saved instead of being lost.
//
// The shim never touches the generator directly. It hands a fake Backend to
// a Hook, and the Hook knows how to get that Backend into the generator.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tliron/commonlog"
)

var (
	// ErrUnsupportedRuntime means the generator does not expose the
	// extension point a Hook expects.
	ErrUnsupportedRuntime = errors.New("unsupported host runtime revision")

	// ErrShimActive is returned when a different shim is already installed.
	ErrShimActive = errors.New("another capture shim is already installed")

	// ErrNilBackend is returned by a Hook asked to inject a nil Backend. It
	// is a caller bug, not a runtime mismatch.
	ErrNilBackend = errors.New("nil backend")
)

// Backend is the storage capability a code generator needs to dump the
// classes it synthesizes.
type Backend interface {
	// MkdirAll is called for the parent directory of every dumped class.
	MkdirAll(dir string) error
	// Create opens a write channel for name. Closing it completes the write.
	Create(name string) (io.WriteCloser, error)
}

// CaptureFunc receives a completed class: its identity (the dumped path
// without the .class suffix) and its bytes. It is called once per write.
type CaptureFunc func(identity string, data []byte) error

// Hook installs a Backend into a code generator's extension point.
type Hook interface {
	Name() string
	// Inject replaces the extension point's current value with b, keeping
	// the previous value for Restore.
	Inject(b Backend) error
	// Restore puts back the value seen by the first successful Inject. It
	// does nothing if Inject never succeeded.
	Restore() error
}

// HookError reports that a Hook could not reach the extension point it
// expects, wrapping ErrUnsupportedRuntime.
type HookError struct {
	Hook string
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("cannot install class dumper into %s: %v; replay a dump directory instead", e.Hook, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// installMu guards active. Only one shim may be installed per process.
var (
	installMu sync.Mutex
	active    *Shim
)

// Shim captures classes written to its Backend and forwards them to a
// CaptureFunc.
type Shim struct {
	hook    Hook
	backend *dumper
	log     commonlog.Logger
}

// NewShim returns a shim that installs through hook and passes every
// completed write to fn.
func NewShim(hook Hook, fn CaptureFunc) *Shim {
	log := commonlog.GetLogger("retrolambda.capture")
	return &Shim{
		hook:    hook,
		backend: &dumper{capture: fn, log: log},
		log:     log,
	}
}

// Backend returns the fake backend the shim installs.
func (s *Shim) Backend() Backend {
	return s.backend
}

// Install puts the shim's backend into place. Installing an already
// installed shim is a no-op; installing while another shim is active fails
// with ErrShimActive. Hook failures caused by a runtime mismatch come back as
// *HookError; any other hook error is returned wrapped as is.
func (s *Shim) Install() error {
	installMu.Lock()
	defer installMu.Unlock()

	if active == s {
		return nil
	}
	if active != nil {
		return ErrShimActive
	}
	if s.hook == nil {
		return &HookError{Hook: "<nil>", Err: ErrUnsupportedRuntime}
	}
	if err := s.hook.Inject(s.backend); err != nil {
		var hookErr *HookError
		switch {
		case errors.As(err, &hookErr):
		case errors.Is(err, ErrUnsupportedRuntime):
			err = &HookError{Hook: s.hook.Name(), Err: err}
		default:
			err = fmt.Errorf("installing into %s: %w", s.hook.Name(), err)
		}
		s.log.Errorf("%v", err)
		return err
	}
	active = s
	s.log.Debugf("installed class dumper into %s", s.hook.Name())
	return nil
}

// Uninstall restores the extension point. It is safe to call any number of
// times, with or without a successful Install.
func (s *Shim) Uninstall() error {
	installMu.Lock()
	defer installMu.Unlock()

	if active != s {
		return nil
	}
	active = nil
	if err := s.hook.Restore(); err != nil {
		return fmt.Errorf("restoring %s: %w", s.hook.Name(), err)
	}
	s.log.Debugf("uninstalled class dumper from %s", s.hook.Name())
	return nil
}

// Close uninstalls the shim.
func (s *Shim) Close() error {
	return s.Uninstall()
}

// Installed reports whether s is the active shim.
func (s *Shim) Installed() bool {
	installMu.Lock()
	defer installMu.Unlock()
	return active == s
}
