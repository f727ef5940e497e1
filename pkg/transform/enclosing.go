package transform

import (
	"github.com/daimatz/goretrolambda/pkg/classfile"
	"github.com/daimatz/goretrolambda/pkg/methodref"
)

// UpdateRenamedEnclosingMethods points the EnclosingMethod attribute of a
// local or anonymous class at the current name of its enclosing method, as
// recorded in the run's Resolver. Methods that were never renamed are left
// alone.
type UpdateRenamedEnclosingMethods struct{}

func (UpdateRenamedEnclosingMethods) Name() string { return "update-renamed-enclosing-methods" }

func (UpdateRenamedEnclosingMethods) Apply(ctx *Context, cf *classfile.ClassFile) (*classfile.ClassFile, error) {
	em, err := cf.EnclosingMethod()
	if err != nil {
		return nil, err
	}
	if em == nil || !em.HasMethod() {
		return cf, nil
	}

	orig := methodref.Ref{Owner: em.Owner, Name: em.Name, Desc: em.Descriptor}
	resolved := ctx.Resolver.Resolve(orig)
	if resolved == orig {
		return cf, nil
	}

	ctx.Log.Debugf("%s: enclosing method %s is now %s", UnitName(cf), orig, resolved)
	out := cf.Clone()
	err = out.SetEnclosingMethod(classfile.EnclosingMethod{
		Owner:      resolved.Owner,
		Name:       resolved.Name,
		Descriptor: resolved.Desc,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
