package classfile

import "slices"

// Clone returns a deep copy of the class file.
func (cf *ClassFile) Clone() *ClassFile {
	out := *cf
	out.ConstantPool = make([]ConstantPoolEntry, len(cf.ConstantPool))
	for i, e := range cf.ConstantPool {
		out.ConstantPool[i] = cloneEntry(e)
	}
	out.Interfaces = slices.Clone(cf.Interfaces)
	out.Fields = make([]FieldInfo, len(cf.Fields))
	for i, f := range cf.Fields {
		f.Attributes = cloneAttributes(f.Attributes)
		out.Fields[i] = f
	}
	out.Methods = make([]MethodInfo, len(cf.Methods))
	for i, m := range cf.Methods {
		m.Attributes = cloneAttributes(m.Attributes)
		if m.Code != nil {
			code := *m.Code
			code.Code = slices.Clone(m.Code.Code)
			code.ExceptionHandlers = slices.Clone(m.Code.ExceptionHandlers)
			m.Code = &code
		}
		out.Methods[i] = m
	}
	out.Attributes = cloneAttributes(cf.Attributes)
	return &out
}

func cloneAttributes(attrs []AttributeInfo) []AttributeInfo {
	if attrs == nil {
		return nil
	}
	out := make([]AttributeInfo, len(attrs))
	for i, a := range attrs {
		a.Data = slices.Clone(a.Data)
		out[i] = a
	}
	return out
}

func cloneEntry(e ConstantPoolEntry) ConstantPoolEntry {
	switch c := e.(type) {
	case nil:
		return nil
	case *ConstantUtf8:
		v := *c
		return &v
	case *ConstantInteger:
		v := *c
		return &v
	case *ConstantFloat:
		v := *c
		return &v
	case *ConstantLong:
		v := *c
		return &v
	case *ConstantDouble:
		v := *c
		return &v
	case *ConstantClass:
		v := *c
		return &v
	case *ConstantString:
		v := *c
		return &v
	case *ConstantFieldref:
		v := *c
		return &v
	case *ConstantMethodref:
		v := *c
		return &v
	case *ConstantInterfaceMethodref:
		v := *c
		return &v
	case *ConstantNameAndType:
		v := *c
		return &v
	case *ConstantMethodHandle:
		v := *c
		return &v
	case *ConstantMethodType:
		v := *c
		return &v
	case *ConstantDynamic:
		v := *c
		return &v
	case *ConstantInvokeDynamic:
		v := *c
		return &v
	case *ConstantModule:
		v := *c
		return &v
	case *ConstantPackage:
		v := *c
		return &v
	}
	return e
}
