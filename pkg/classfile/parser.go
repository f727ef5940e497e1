package classfile

import (
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data)
}

// Parse reads a .class file from r.
func Parse(r io.Reader) (*ClassFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading class file: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses a .class file held in memory. Trailing bytes after the
// class attributes are an error.
func ParseBytes(data []byte) (*ClassFile, error) {
	d := &decoder{buf: data}
	cf, err := d.classFile()
	if err != nil {
		return nil, err
	}
	if n := d.remaining(); n > 0 {
		return nil, fmt.Errorf("%d trailing bytes at offset %d", n, d.pos)
	}
	return cf, nil
}

func (d *decoder) classFile() (*ClassFile, error) {
	magic, err := d.u4("magic")
	if err != nil {
		return nil, err
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	cf := &ClassFile{}
	if cf.MinorVersion, err = d.u2("minor version"); err != nil {
		return nil, err
	}
	if cf.MajorVersion, err = d.u2("major version"); err != nil {
		return nil, err
	}

	cpCount, err := d.u2("constant pool count")
	if err != nil {
		return nil, err
	}
	if cf.ConstantPool, err = d.constantPool(cpCount); err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}

	header := []*uint16{&cf.AccessFlags, &cf.ThisClass, &cf.SuperClass}
	for i, name := range []string{"access flags", "this_class", "super_class"} {
		if *header[i], err = d.u2(name); err != nil {
			return nil, err
		}
	}
	if cf.Interfaces, err = d.u2s("interface"); err != nil {
		return nil, err
	}

	fieldsCount, err := d.u2("fields count")
	if err != nil {
		return nil, err
	}
	cf.Fields = make([]FieldInfo, fieldsCount)
	for i := range cf.Fields {
		m, err := d.member(cf.ConstantPool, "field", i)
		if err != nil {
			return nil, fmt.Errorf("parsing fields: %w", err)
		}
		cf.Fields[i] = FieldInfo{
			AccessFlags:     m.AccessFlags,
			NameIndex:       m.NameIndex,
			DescriptorIndex: m.DescriptorIndex,
			Name:            m.Name,
			Descriptor:      m.Descriptor,
			Attributes:      m.Attributes,
		}
	}

	methodsCount, err := d.u2("methods count")
	if err != nil {
		return nil, err
	}
	cf.Methods = make([]MethodInfo, methodsCount)
	for i := range cf.Methods {
		m, err := d.member(cf.ConstantPool, "method", i)
		if err != nil {
			return nil, fmt.Errorf("parsing methods: %w", err)
		}
		if attr := findAttribute(m.Attributes, AttrCode); attr != nil {
			if m.Code, err = parseCodeAttribute(attr.Data); err != nil {
				return nil, fmt.Errorf("parsing Code attribute for method %s%s: %w", m.Name, m.Descriptor, err)
			}
		}
		cf.Methods[i] = m
	}

	if cf.Attributes, err = d.attributes(cf.ConstantPool); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}
	return cf, nil
}

// member reads a field_info or method_info; both share one layout.
func (d *decoder) member(pool []ConstantPoolEntry, kind string, i int) (MethodInfo, error) {
	var m MethodInfo
	var err error
	if m.AccessFlags, err = d.u2(kind + " access flags"); err != nil {
		return m, err
	}
	if m.NameIndex, err = d.u2(kind + " name index"); err != nil {
		return m, err
	}
	if m.DescriptorIndex, err = d.u2(kind + " descriptor index"); err != nil {
		return m, err
	}
	if m.Name, err = GetUtf8(pool, m.NameIndex); err != nil {
		return m, fmt.Errorf("resolving %s %d name: %w", kind, i, err)
	}
	if m.Descriptor, err = GetUtf8(pool, m.DescriptorIndex); err != nil {
		return m, fmt.Errorf("resolving %s %d descriptor: %w", kind, i, err)
	}
	if m.Attributes, err = d.attributes(pool); err != nil {
		return m, fmt.Errorf("%s %d (%s): %w", kind, i, m.Name, err)
	}
	return m, nil
}

func (d *decoder) attributes(pool []ConstantPoolEntry) ([]AttributeInfo, error) {
	count, err := d.u2("attributes count")
	if err != nil {
		return nil, err
	}
	attrs := make([]AttributeInfo, count)
	for i := range attrs {
		nameIndex, err := d.u2("attribute name index")
		if err != nil {
			return nil, err
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		length, err := d.u4(name + " length")
		if err != nil {
			return nil, err
		}
		data, err := d.bytes(int(length), name+" data")
		if err != nil {
			return nil, err
		}
		attrs[i] = AttributeInfo{NameIndex: nameIndex, Name: name, Data: data}
	}
	return attrs, nil
}

// parseCodeAttribute decodes max_stack, max_locals, the bytecode and the
// exception table. Nested attributes stay in the raw data.
func parseCodeAttribute(data []byte) (*CodeAttribute, error) {
	d := &decoder{buf: data}
	var c CodeAttribute
	var err error
	if c.MaxStack, err = d.u2("max_stack"); err != nil {
		return nil, err
	}
	if c.MaxLocals, err = d.u2("max_locals"); err != nil {
		return nil, err
	}
	codeLength, err := d.u4("code_length")
	if err != nil {
		return nil, err
	}
	if c.Code, err = d.bytes(int(codeLength), "code"); err != nil {
		return nil, err
	}

	handlers, err := d.u2("exception table length")
	if err != nil {
		return nil, err
	}
	c.ExceptionHandlers = make([]ExceptionHandler, handlers)
	for i := range c.ExceptionHandlers {
		h := &c.ExceptionHandlers[i]
		for _, f := range []*uint16{&h.StartPC, &h.EndPC, &h.HandlerPC, &h.CatchType} {
			if *f, err = d.u2("exception table entry"); err != nil {
				return nil, fmt.Errorf("exception table truncated at entry %d: %w", i, err)
			}
		}
	}
	return &c, nil
}

func findAttribute(attrs []AttributeInfo, name string) *AttributeInfo {
	for i := range attrs {
		if attrs[i].Name == name {
			return &attrs[i]
		}
	}
	return nil
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindMethodByName returns the first method called name.
func (cf *ClassFile) FindMethodByName(name string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindAttribute returns the first class-level attribute with the given name.
func (cf *ClassFile) FindAttribute(name string) *AttributeInfo {
	return findAttribute(cf.Attributes, name)
}
