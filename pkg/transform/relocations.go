package transform

import (
	"strings"

	"github.com/daimatz/goretrolambda/pkg/classfile"
	"github.com/daimatz/goretrolambda/pkg/methodref"
)

const (
	lambdaImplPrefix = "lambda$"
	classInitializer = "<clinit>"
)

// CompanionName returns the name of the class that receives the static
// methods and lambda bodies moved out of interface iface.
func CompanionName(iface string) string {
	return iface + "$"
}

// RecordInterfaceRelocations records, for every interface, where its static
// methods and lambda implementation methods end up once they move to the
// companion class. Instance lambda bodies become static and take the
// interface as their first parameter.
type RecordInterfaceRelocations struct{}

func (RecordInterfaceRelocations) Name() string { return "record-interface-relocations" }

func (RecordInterfaceRelocations) Analyze(ctx *Context, cf *classfile.ClassFile) error {
	if !cf.IsInterface() {
		return nil
	}
	owner, err := cf.ClassName()
	if err != nil {
		return err
	}
	impls, err := cf.LambdaImplMethods()
	if err != nil {
		return err
	}
	isImpl := make(map[methodref.Ref]bool, len(impls))
	for _, impl := range impls {
		if impl.ClassName == owner {
			isImpl[methodref.Ref{Owner: owner, Name: impl.MethodName, Desc: impl.Descriptor}] = true
		}
	}

	companion := CompanionName(owner)
	for i := range cf.Methods {
		m := &cf.Methods[i]
		if !m.HasBody() || m.Name == classInitializer {
			continue
		}
		orig := methodref.Ref{Owner: owner, Name: m.Name, Desc: m.Descriptor}
		lambda := isImpl[orig] || strings.HasPrefix(m.Name, lambdaImplPrefix)
		switch {
		case m.IsStatic():
			ctx.Resolver.Record(orig, methodref.Ref{Owner: companion, Name: m.Name, Desc: m.Descriptor})
		case lambda:
			desc, err := classfile.PrependParam(m.Descriptor, owner)
			if err != nil {
				return err
			}
			ctx.Resolver.Record(orig, methodref.Ref{Owner: companion, Name: m.Name, Desc: desc})
		default:
			continue
		}
		ctx.Log.Debugf("%s: %s%s relocates to %s", owner, m.Name, m.Descriptor, companion)
	}
	return nil
}
