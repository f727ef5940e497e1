package transform

import (
	"github.com/daimatz/goretrolambda/pkg/classfile"
)

// RemoveDefaultMethodBodies turns the default methods of an interface into
// abstract declarations and drops its static methods, the class initializer included. Other classes pass
// through untouched.
//
// Annotations and other attributes of a rewritten method are kept as they
// are.
type RemoveDefaultMethodBodies struct{}

func (RemoveDefaultMethodBodies) Name() string { return "remove-default-method-bodies" }

func (RemoveDefaultMethodBodies) Apply(ctx *Context, cf *classfile.ClassFile) (*classfile.ClassFile, error) {
	if !cf.IsInterface() || !needsLowering(cf) {
		return cf, nil
	}

	out := cf.Clone()
	methods := out.Methods[:0]
	for _, m := range out.Methods {
		switch {
		case m.IsStatic():
			ctx.Log.Debugf("%s: dropping static method %s%s", UnitName(cf), m.Name, m.Descriptor)
		case m.IsDefault():
			ctx.Log.Debugf("%s: making default method %s%s abstract", UnitName(cf), m.Name, m.Descriptor)
			m.AccessFlags |= classfile.AccAbstract
			m.RemoveBody()
			methods = append(methods, m)
		default:
			methods = append(methods, m)
		}
	}
	out.Methods = methods
	return out, nil
}

func needsLowering(cf *classfile.ClassFile) bool {
	for i := range cf.Methods {
		m := &cf.Methods[i]
		if m.IsStatic() || m.IsDefault() {
			return true
		}
	}
	return false
}
