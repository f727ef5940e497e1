package transform

import (
	"fmt"

	"github.com/daimatz/goretrolambda/pkg/classfile"
)

// Class file major versions.
const (
	Java5 = 49
	Java6 = 50
	Java7 = 51
	Java8 = 52
)

// LowerVersion rewrites the class file version down to Target. Older class
// files are left as they are.
type LowerVersion struct {
	Target uint16
}

func (LowerVersion) Name() string { return "lower-version" }

func (p LowerVersion) Apply(ctx *Context, cf *classfile.ClassFile) (*classfile.ClassFile, error) {
	if p.Target < Java5 {
		return nil, fmt.Errorf("unsupported target version %d", p.Target)
	}
	if cf.MajorVersion <= p.Target {
		return cf, nil
	}
	out := cf.Clone()
	out.MajorVersion = p.Target
	out.MinorVersion = 0
	return out, nil
}
