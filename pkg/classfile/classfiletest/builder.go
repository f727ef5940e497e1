// Package classfiletest builds small class files in memory for tests.
package classfiletest

import (
	"encoding/binary"
	"testing"

	"github.com/daimatz/goretrolambda/pkg/classfile"
)

// opReturn is the bytecode for a void return.
const opReturn = 0xb1

// Builder assembles a ClassFile. Errors are collected and reported by Build.
type Builder struct {
	cf  *classfile.ClassFile
	err error
}

// New starts a class file for name with the given super class and access
// flags, at major version 52 (Java 8).
func New(name, super string, flags uint16) *Builder {
	b := &Builder{cf: &classfile.ClassFile{
		MajorVersion: 52,
		AccessFlags:  flags,
		ConstantPool: []classfile.ConstantPoolEntry{nil},
	}}
	b.cf.ThisClass = b.class(name)
	if super != "" {
		b.cf.SuperClass = b.class(super)
	}
	return b
}

// NewInterface starts an interface named name.
func NewInterface(name string) *Builder {
	return New(name, "java/lang/Object", classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract)
}

func (b *Builder) utf8(s string) uint16 {
	idx, err := b.cf.AddUtf8(s)
	if err != nil && b.err == nil {
		b.err = err
	}
	return idx
}

func (b *Builder) class(name string) uint16 {
	idx, err := b.cf.AddClass(name)
	if err != nil && b.err == nil {
		b.err = err
	}
	return idx
}

func (b *Builder) add(e classfile.ConstantPoolEntry) uint16 {
	b.cf.ConstantPool = append(b.cf.ConstantPool, e)
	return uint16(len(b.cf.ConstantPool) - 1)
}

// Version sets the major version.
func (b *Builder) Version(major uint16) *Builder {
	b.cf.MajorVersion = major
	return b
}

// Implements adds interfaces.
func (b *Builder) Implements(names ...string) *Builder {
	for _, n := range names {
		b.cf.Interfaces = append(b.cf.Interfaces, b.class(n))
	}
	return b
}

// Field adds a field without attributes.
func (b *Builder) Field(flags uint16, name, desc string) *Builder {
	b.cf.Fields = append(b.cf.Fields, classfile.FieldInfo{
		AccessFlags:     flags,
		NameIndex:       b.utf8(name),
		DescriptorIndex: b.utf8(desc),
		Name:            name,
		Descriptor:      desc,
	})
	return b
}

// Method adds a method. Methods without the abstract or native flag get a
// body consisting of a single return instruction.
func (b *Builder) Method(flags uint16, name, desc string) *Builder {
	m := classfile.MethodInfo{
		AccessFlags:     flags,
		NameIndex:       b.utf8(name),
		DescriptorIndex: b.utf8(desc),
		Name:            name,
		Descriptor:      desc,
	}
	if !classfile.HasFlag(flags, classfile.AccAbstract) && !classfile.HasFlag(flags, classfile.AccNative) {
		params, err := classfile.ParamCount(desc)
		if err != nil && b.err == nil {
			b.err = err
		}
		locals := uint16(params)
		if !classfile.HasFlag(flags, classfile.AccStatic) {
			locals++
		}
		code := &classfile.CodeAttribute{MaxLocals: locals, Code: []byte{opReturn}}
		m.Attributes = append(m.Attributes, classfile.AttributeInfo{
			NameIndex: b.utf8(classfile.AttrCode),
			Name:      classfile.AttrCode,
			Data:      encodeCode(code),
		})
		m.Code = code
	}
	b.cf.Methods = append(b.cf.Methods, m)
	return b
}

// MethodAttribute appends a raw attribute to the most recently added method.
func (b *Builder) MethodAttribute(name string, data []byte) *Builder {
	if len(b.cf.Methods) == 0 {
		return b
	}
	m := &b.cf.Methods[len(b.cf.Methods)-1]
	m.Attributes = append(m.Attributes, classfile.AttributeInfo{NameIndex: b.utf8(name), Name: name, Data: data})
	return b
}

// EnclosingMethod sets the EnclosingMethod attribute. An empty name leaves
// method_index at 0.
func (b *Builder) EnclosingMethod(owner, name, desc string) *Builder {
	if err := b.cf.SetEnclosingMethod(classfile.EnclosingMethod{Owner: owner, Name: name, Descriptor: desc}); err != nil && b.err == nil {
		b.err = err
	}
	return b
}

// LambdaBootstrap registers an invokedynamic bootstrap for a lambda whose
// implementation is implOwner.implName:implDesc, invoked with kind.
func (b *Builder) LambdaBootstrap(kind uint8, implOwner, implName, implDesc string, iface bool) *Builder {
	factoryRef := b.methodRef("java/lang/invoke/LambdaMetafactory", "metafactory",
		"(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;", false)
	factory := b.add(&classfile.ConstantMethodHandle{ReferenceKind: classfile.RefInvokeStatic, ReferenceIndex: factoryRef})

	samType := b.add(&classfile.ConstantMethodType{DescriptorIndex: b.utf8("()V")})
	implRef := b.methodRef(implOwner, implName, implDesc, iface)
	impl := b.add(&classfile.ConstantMethodHandle{ReferenceKind: kind, ReferenceIndex: implRef})

	bsms := []classfile.BootstrapMethod{{MethodRef: factory, BootstrapArguments: []uint16{samType, impl, samType}}}
	if attr := b.cf.FindAttribute(classfile.AttrBootstrapMethods); attr != nil {
		existing, err := b.cf.BootstrapMethods()
		if err != nil && b.err == nil {
			b.err = err
		}
		attr.Data = encodeBootstrapMethods(append(existing, bsms...))
		return b
	}
	b.cf.Attributes = append(b.cf.Attributes, classfile.AttributeInfo{
		NameIndex: b.utf8(classfile.AttrBootstrapMethods),
		Name:      classfile.AttrBootstrapMethods,
		Data:      encodeBootstrapMethods(bsms),
	})
	return b
}

// LongConstant appends a Long constant so tests cover two-slot entries.
func (b *Builder) LongConstant(v int64) *Builder {
	b.add(&classfile.ConstantLong{Value: v})
	b.cf.ConstantPool = append(b.cf.ConstantPool, nil)
	return b
}

func (b *Builder) methodRef(owner, name, desc string, iface bool) uint16 {
	classIndex := b.class(owner)
	nat, err := b.cf.AddNameAndType(name, desc)
	if err != nil && b.err == nil {
		b.err = err
	}
	if iface {
		return b.add(&classfile.ConstantInterfaceMethodref{ClassIndex: classIndex, NameAndTypeIndex: nat})
	}
	return b.add(&classfile.ConstantMethodref{ClassIndex: classIndex, NameAndTypeIndex: nat})
}

// ClassFile returns the assembled class file.
func (b *Builder) ClassFile(t testing.TB) *classfile.ClassFile {
	t.Helper()
	if b.err != nil {
		t.Fatalf("building class file: %v", b.err)
	}
	return b.cf
}

// Build encodes the assembled class file.
func (b *Builder) Build(t testing.TB) []byte {
	t.Helper()
	data, err := b.ClassFile(t).Bytes()
	if err != nil {
		t.Fatalf("encoding class file: %v", err)
	}
	return data
}

func encodeCode(c *classfile.CodeAttribute) []byte {
	var buf []byte
	buf = binary.BigEndian.AppendUint16(buf, c.MaxStack)
	buf = binary.BigEndian.AppendUint16(buf, c.MaxLocals)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Code)))
	buf = append(buf, c.Code...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(c.ExceptionHandlers)))
	for _, h := range c.ExceptionHandlers {
		buf = binary.BigEndian.AppendUint16(buf, h.StartPC)
		buf = binary.BigEndian.AppendUint16(buf, h.EndPC)
		buf = binary.BigEndian.AppendUint16(buf, h.HandlerPC)
		buf = binary.BigEndian.AppendUint16(buf, h.CatchType)
	}
	// attributes_count
	buf = binary.BigEndian.AppendUint16(buf, 0)
	return buf
}

func encodeBootstrapMethods(bsms []classfile.BootstrapMethod) []byte {
	var buf []byte
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(bsms)))
	for _, m := range bsms {
		buf = binary.BigEndian.AppendUint16(buf, m.MethodRef)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(m.BootstrapArguments)))
		for _, a := range m.BootstrapArguments {
			buf = binary.BigEndian.AppendUint16(buf, a)
		}
	}
	return buf
}
