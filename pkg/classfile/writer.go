package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// encoder appends big-endian class file structures to a byte slice.
type encoder struct {
	buf []byte
}

func (e *encoder) u1(v uint8)  { e.buf = append(e.buf, v) }
func (e *encoder) u2(v uint16) { e.buf = binary.BigEndian.AppendUint16(e.buf, v) }
func (e *encoder) u4(v uint32) { e.buf = binary.BigEndian.AppendUint32(e.buf, v) }
func (e *encoder) u8(v uint64) { e.buf = binary.BigEndian.AppendUint64(e.buf, v) }

// Bytes encodes the class file.
func (cf *ClassFile) Bytes() ([]byte, error) {
	e := &encoder{}
	if err := cf.encode(e); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// Encode writes the class file to w.
func (cf *ClassFile) Encode(w io.Writer) error {
	data, err := cf.Bytes()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (cf *ClassFile) encode(e *encoder) error {
	e.u4(classMagic)
	e.u2(cf.MinorVersion)
	e.u2(cf.MajorVersion)

	if err := encodeConstantPool(e, cf.ConstantPool); err != nil {
		return fmt.Errorf("encoding constant pool: %w", err)
	}

	e.u2(cf.AccessFlags)
	e.u2(cf.ThisClass)
	e.u2(cf.SuperClass)

	if len(cf.Interfaces) > math.MaxUint16 {
		return fmt.Errorf("too many interfaces: %d", len(cf.Interfaces))
	}
	e.u2(uint16(len(cf.Interfaces)))
	for _, idx := range cf.Interfaces {
		e.u2(idx)
	}

	if len(cf.Fields) > math.MaxUint16 {
		return fmt.Errorf("too many fields: %d", len(cf.Fields))
	}
	e.u2(uint16(len(cf.Fields)))
	for i, f := range cf.Fields {
		if err := encodeMember(e, f.AccessFlags, f.NameIndex, f.DescriptorIndex, f.Attributes); err != nil {
			return fmt.Errorf("encoding field %d (%s): %w", i, f.Name, err)
		}
	}

	if len(cf.Methods) > math.MaxUint16 {
		return fmt.Errorf("too many methods: %d", len(cf.Methods))
	}
	e.u2(uint16(len(cf.Methods)))
	for i, m := range cf.Methods {
		if err := encodeMember(e, m.AccessFlags, m.NameIndex, m.DescriptorIndex, m.Attributes); err != nil {
			return fmt.Errorf("encoding method %d (%s%s): %w", i, m.Name, m.Descriptor, err)
		}
	}

	if err := encodeAttributes(e, cf.Attributes); err != nil {
		return fmt.Errorf("encoding class attributes: %w", err)
	}
	return nil
}

func encodeConstantPool(e *encoder, pool []ConstantPoolEntry) error {
	count := len(pool)
	if count == 0 {
		count = 1
	}
	if count > maxPoolSize {
		return fmt.Errorf("constant pool too large: %d entries", count)
	}
	e.u2(uint16(count))

	for i := 1; i < len(pool); i++ {
		entry := pool[i]
		if entry == nil {
			return fmt.Errorf("empty constant pool slot %d", i)
		}
		e.u1(entry.Tag())
		switch c := entry.(type) {
		case *ConstantUtf8:
			if len(c.Value) > math.MaxUint16 {
				return fmt.Errorf("Utf8 at index %d too long: %d bytes", i, len(c.Value))
			}
			e.u2(uint16(len(c.Value)))
			e.buf = append(e.buf, c.Value...)
		case *ConstantInteger:
			e.u4(uint32(c.Value))
		case *ConstantFloat:
			e.u4(math.Float32bits(c.Value))
		case *ConstantLong:
			e.u8(uint64(c.Value))
			i++ // long takes 2 slots
		case *ConstantDouble:
			e.u8(math.Float64bits(c.Value))
			i++ // double takes 2 slots
		case *ConstantClass:
			e.u2(c.NameIndex)
		case *ConstantString:
			e.u2(c.StringIndex)
		case *ConstantFieldref:
			e.u2(c.ClassIndex)
			e.u2(c.NameAndTypeIndex)
		case *ConstantMethodref:
			e.u2(c.ClassIndex)
			e.u2(c.NameAndTypeIndex)
		case *ConstantInterfaceMethodref:
			e.u2(c.ClassIndex)
			e.u2(c.NameAndTypeIndex)
		case *ConstantNameAndType:
			e.u2(c.NameIndex)
			e.u2(c.DescriptorIndex)
		case *ConstantMethodHandle:
			e.u1(c.ReferenceKind)
			e.u2(c.ReferenceIndex)
		case *ConstantMethodType:
			e.u2(c.DescriptorIndex)
		case *ConstantDynamic:
			e.u2(c.BootstrapMethodAttrIndex)
			e.u2(c.NameAndTypeIndex)
		case *ConstantInvokeDynamic:
			e.u2(c.BootstrapMethodAttrIndex)
			e.u2(c.NameAndTypeIndex)
		case *ConstantModule:
			e.u2(c.NameIndex)
		case *ConstantPackage:
			e.u2(c.NameIndex)
		default:
			return fmt.Errorf("unsupported constant pool entry at index %d (tag=%d)", i, entry.Tag())
		}
	}
	return nil
}

func encodeMember(e *encoder, flags, nameIndex, descIndex uint16, attrs []AttributeInfo) error {
	if nameIndex == 0 || descIndex == 0 {
		return fmt.Errorf("missing name or descriptor index")
	}
	e.u2(flags)
	e.u2(nameIndex)
	e.u2(descIndex)
	return encodeAttributes(e, attrs)
}

func encodeAttributes(e *encoder, attrs []AttributeInfo) error {
	if len(attrs) > math.MaxUint16 {
		return fmt.Errorf("too many attributes: %d", len(attrs))
	}
	e.u2(uint16(len(attrs)))
	for _, a := range attrs {
		if a.NameIndex == 0 {
			return fmt.Errorf("attribute %q has no name index", a.Name)
		}
		if uint64(len(a.Data)) > math.MaxUint32 {
			return fmt.Errorf("attribute %q too long", a.Name)
		}
		e.u2(a.NameIndex)
		e.u4(uint32(len(a.Data)))
		e.buf = append(e.buf, a.Data...)
	}
	return nil
}
