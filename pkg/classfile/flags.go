package classfile

// HasFlag reports whether all bits of flag are set in flags.
func HasFlag(flags, flag uint16) bool {
	return flags&flag == flag
}

// IsInterface reports whether the class file declares an interface.
func (cf *ClassFile) IsInterface() bool {
	return HasFlag(cf.AccessFlags, AccInterface)
}

func (m *MethodInfo) IsAbstract() bool { return HasFlag(m.AccessFlags, AccAbstract) }
func (m *MethodInfo) IsStatic() bool   { return HasFlag(m.AccessFlags, AccStatic) }

// IsDefault reports whether m, declared in an interface, is a default method:
// neither abstract nor static.
func (m *MethodInfo) IsDefault() bool {
	return !m.IsAbstract() && !m.IsStatic()
}

// HasBody reports whether the method carries a Code attribute.
func (m *MethodInfo) HasBody() bool {
	for _, a := range m.Attributes {
		if a.Name == AttrCode {
			return true
		}
	}
	return false
}

// RemoveBody drops the Code attribute.
func (m *MethodInfo) RemoveBody() {
	kept := m.Attributes[:0:0]
	for _, a := range m.Attributes {
		if a.Name != AttrCode {
			kept = append(kept, a)
		}
	}
	m.Attributes = kept
	m.Code = nil
}
