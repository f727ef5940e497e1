// Package lambdas recognizes the classes the lambda metafactory synthesizes
// at run time and saves them, lowered, next to the ahead-of-time output.
package lambdas

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/daimatz/goretrolambda/pkg/capture"
	"github.com/daimatz/goretrolambda/pkg/output"
	"github.com/daimatz/goretrolambda/pkg/transform"
)

// lambdaMarker separates the enclosing type from the lambda index.
const lambdaMarker = "$$Lambda$"

// DefaultPattern matches names of the form <enclosingType>$$Lambda$<index>.
var DefaultPattern = regexp.MustCompile(`^.+\$\$Lambda\$\d+$`)

// IsLambdaClass reports whether name follows the default lambda naming
// convention.
func IsLambdaClass(name string) bool {
	return DefaultPattern.MatchString(name)
}

// EnclosingType returns the type a lambda class was spun for, or false when
// name is not a lambda class name.
func EnclosingType(name string) (string, bool) {
	if !IsLambdaClass(name) {
		return "", false
	}
	return name[:strings.LastIndex(name, lambdaMarker)], true
}

// Option configures a Saver.
type Option func(*Saver)

// WithPattern replaces the lambda name pattern.
func WithPattern(re *regexp.Regexp) Option {
	return func(s *Saver) {
		if re != nil {
			s.pattern = re
		}
	}
}

// Saver lowers captured lambda classes and writes them to a sink.
type Saver struct {
	chain   *transform.Chain
	ctx     *transform.Context
	sink    output.Sink
	pattern *regexp.Regexp
	log     commonlog.Logger

	saved   atomic.Int64
	skipped atomic.Int64
}

// NewSaver returns a Saver that runs chain in ctx before writing to sink.
func NewSaver(chain *transform.Chain, ctx *transform.Context, sink output.Sink, opts ...Option) *Saver {
	if ctx == nil {
		ctx = transform.NewContext(nil)
	}
	s := &Saver{
		chain:   chain,
		ctx:     ctx,
		sink:    sink,
		pattern: DefaultPattern,
		log:     commonlog.GetLogger("retrolambda.lambdas"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveIfLambda lowers and saves data when identity names a lambda class.
// Other identities are ignored. Saving the same identity twice overwrites the
// first copy.
func (s *Saver) SaveIfLambda(identity string, data []byte) error {
	if !s.pattern.MatchString(identity) {
		s.log.Debugf("ignoring %s", identity)
		s.skipped.Add(1)
		return nil
	}
	lowered, err := s.chain.Transform(s.ctx, identity, data)
	if err != nil {
		return fmt.Errorf("lowering lambda class %s: %w", identity, err)
	}
	if err := s.sink.Write(identity, lowered); err != nil {
		return fmt.Errorf("saving lambda class %s: %w", identity, err)
	}
	s.saved.Add(1)
	s.log.Debugf("saved %s", identity)
	return nil
}

// Capture returns SaveIfLambda as a capture callback.
func (s *Saver) Capture() capture.CaptureFunc {
	return s.SaveIfLambda
}

// Saved returns how many lambda classes were written.
func (s *Saver) Saved() int { return int(s.saved.Load()) }

// Skipped returns how many captured classes did not match the pattern.
func (s *Saver) Skipped() int { return int(s.skipped.Load()) }
