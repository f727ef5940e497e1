// Package transform holds the passes that lower class files to an older
// class file revision, and the chain that runs them in order.
package transform

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/daimatz/goretrolambda/pkg/classfile"
	"github.com/daimatz/goretrolambda/pkg/methodref"
)

// Context is shared by every pass of one transformation run.
type Context struct {
	Resolver *methodref.Resolver
	Log      commonlog.Logger
}

// NewContext returns a Context for a run using resolver. A nil resolver gets
// a fresh one.
func NewContext(resolver *methodref.Resolver) *Context {
	if resolver == nil {
		resolver = methodref.NewResolver()
	}
	return &Context{
		Resolver: resolver,
		Log:      commonlog.GetLogger("retrolambda.transform"),
	}
}

// Pass transforms one class file. Apply must not modify its argument; a pass
// that changes nothing may return it as is.
type Pass interface {
	Name() string
	Apply(ctx *Context, cf *classfile.ClassFile) (*classfile.ClassFile, error)
}

// Analyzer inspects a class file before any pass runs, typically to record
// renames in the run's Resolver.
type Analyzer interface {
	Name() string
	Analyze(ctx *Context, cf *classfile.ClassFile) error
}

// PassError reports which unit and pass failed.
type PassError struct {
	Unit string
	Pass string
	Err  error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Unit, e.Pass, e.Err)
}

func (e *PassError) Unwrap() error { return e.Err }

// Chain runs passes in the order given.
type Chain struct {
	passes []Pass
}

// NewChain returns a chain of the given passes.
func NewChain(passes ...Pass) *Chain {
	return &Chain{passes: passes}
}

// NewDefaultChain returns the standard lowering chain for the given target
// major version.
func NewDefaultChain(targetVersion uint16) *Chain {
	return NewChain(
		UpdateRenamedEnclosingMethods{},
		RemoveDefaultMethodBodies{},
		LowerVersion{Target: targetVersion},
	)
}

// Names returns the pass names in order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.passes))
	for i, p := range c.passes {
		names[i] = p.Name()
	}
	return names
}

// Run applies every pass to cf, stopping at the first error.
func (c *Chain) Run(ctx *Context, cf *classfile.ClassFile) (*classfile.ClassFile, error) {
	unit := UnitName(cf)
	for _, p := range c.passes {
		out, err := p.Apply(ctx, cf)
		if err != nil {
			return nil, &PassError{Unit: unit, Pass: p.Name(), Err: err}
		}
		if out == nil {
			return nil, &PassError{Unit: unit, Pass: p.Name(), Err: fmt.Errorf("pass returned no class file")}
		}
		cf = out
	}
	return cf, nil
}

// Transform parses data, runs the chain and encodes the result. name labels
// errors raised before the class name is known.
func (c *Chain) Transform(ctx *Context, name string, data []byte) ([]byte, error) {
	cf, err := classfile.ParseBytes(data)
	if err != nil {
		return nil, &PassError{Unit: name, Pass: "parse", Err: err}
	}
	out, err := c.Run(ctx, cf)
	if err != nil {
		return nil, err
	}
	encoded, err := out.Bytes()
	if err != nil {
		return nil, &PassError{Unit: UnitName(out), Pass: "encode", Err: err}
	}
	return encoded, nil
}

// Analyze runs analyzers over cf in order.
func Analyze(ctx *Context, cf *classfile.ClassFile, analyzers ...Analyzer) error {
	for _, a := range analyzers {
		if err := a.Analyze(ctx, cf); err != nil {
			return &PassError{Unit: UnitName(cf), Pass: a.Name(), Err: err}
		}
	}
	return nil
}

// UnitName returns the class name of cf, or a placeholder when this_class
// does not resolve.
func UnitName(cf *classfile.ClassFile) string {
	name, err := cf.ClassName()
	if err != nil {
		return "<unnamed>"
	}
	return name
}
