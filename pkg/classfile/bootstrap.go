package classfile

import "fmt"

// BootstrapMethod is one entry of the BootstrapMethods attribute.
type BootstrapMethod struct {
	MethodRef          uint16
	BootstrapArguments []uint16
}

// BootstrapMethods decodes the BootstrapMethods attribute, returning nil if
// the class has none.
func (cf *ClassFile) BootstrapMethods() ([]BootstrapMethod, error) {
	attr := cf.FindAttribute(AttrBootstrapMethods)
	if attr == nil {
		return nil, nil
	}
	return parseBootstrapMethods(attr.Data)
}

func parseBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	d := &decoder{buf: data}
	n, err := d.u2("BootstrapMethods count")
	if err != nil {
		return nil, err
	}
	methods := make([]BootstrapMethod, n)
	for i := range methods {
		if methods[i].MethodRef, err = d.u2("bootstrap method ref"); err != nil {
			return nil, fmt.Errorf("BootstrapMethods truncated at method %d: %w", i, err)
		}
		if methods[i].BootstrapArguments, err = d.u2s("bootstrap argument"); err != nil {
			return nil, fmt.Errorf("BootstrapMethods truncated at method %d: %w", i, err)
		}
	}
	return methods, nil
}

const lambdaMetafactory = "java/lang/invoke/LambdaMetafactory"

// LambdaImplMethods returns the implementation methods targeted by the
// lambda metafactory bootstrap methods of this class, in bootstrap order.
func (cf *ClassFile) LambdaImplMethods() ([]MethodRefInfo, error) {
	bsms, err := cf.BootstrapMethods()
	if err != nil {
		return nil, err
	}
	var impls []MethodRefInfo
	for i, bsm := range bsms {
		factory, err := ResolveMethodHandle(cf.ConstantPool, bsm.MethodRef)
		if err != nil {
			return nil, fmt.Errorf("resolving bootstrap method %d: %w", i, err)
		}
		if factory.Method.ClassName != lambdaMetafactory {
			continue
		}
		// (samMethodType, implMethod, instantiatedMethodType, ...)
		if len(bsm.BootstrapArguments) < 3 {
			return nil, fmt.Errorf("bootstrap method %d has %d arguments, want at least 3", i, len(bsm.BootstrapArguments))
		}
		impl, err := ResolveMethodHandle(cf.ConstantPool, bsm.BootstrapArguments[1])
		if err != nil {
			return nil, fmt.Errorf("resolving implementation of bootstrap method %d: %w", i, err)
		}
		impls = append(impls, impl.Method)
	}
	return impls, nil
}
