package classfile

import (
	"fmt"
	"math"
)

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// maxPoolSize is the largest constant_pool_count a class file can declare.
const maxPoolSize = math.MaxUint16

// constantPool reads count-1 entries. The returned slice is 1-indexed:
// index 0 is nil, and so is the slot following a Long or Double.
func (d *decoder) constantPool(count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)
	for i := 1; i < int(count); i++ {
		tag, err := d.u1("constant pool tag")
		if err != nil {
			return nil, err
		}
		if pool[i], err = d.constant(tag); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if tag == TagLong || tag == TagDouble {
			if i+1 >= int(count) {
				return nil, fmt.Errorf("%s at index %d overflows constant pool", tagName(tag), i)
			}
			i++ // 8-byte constants take two slots
		}
	}
	return pool, nil
}

func (d *decoder) constant(tag uint8) (ConstantPoolEntry, error) {
	what := tagName(tag)
	switch tag {
	case TagUtf8:
		length, err := d.u2("Utf8 length")
		if err != nil {
			return nil, err
		}
		b, err := d.take(int(length), "Utf8 bytes")
		if err != nil {
			return nil, err
		}
		return &ConstantUtf8{Value: string(b)}, nil
	case TagInteger, TagFloat:
		v, err := d.u4(what)
		if err != nil {
			return nil, err
		}
		if tag == TagInteger {
			return &ConstantInteger{Value: int32(v)}, nil
		}
		return &ConstantFloat{Value: math.Float32frombits(v)}, nil
	case TagLong, TagDouble:
		v, err := d.u8(what)
		if err != nil {
			return nil, err
		}
		if tag == TagLong {
			return &ConstantLong{Value: int64(v)}, nil
		}
		return &ConstantDouble{Value: math.Float64frombits(v)}, nil
	case TagClass, TagString, TagMethodType, TagModule, TagPackage:
		index, err := d.u2(what)
		if err != nil {
			return nil, err
		}
		return newSingleIndexEntry(tag, index), nil
	case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
		first, err := d.u2(what)
		if err != nil {
			return nil, err
		}
		second, err := d.u2(what)
		if err != nil {
			return nil, err
		}
		return newDoubleIndexEntry(tag, first, second), nil
	case TagMethodHandle:
		kind, err := d.u1("MethodHandle kind")
		if err != nil {
			return nil, err
		}
		ref, err := d.u2("MethodHandle reference")
		if err != nil {
			return nil, err
		}
		return &ConstantMethodHandle{ReferenceKind: kind, ReferenceIndex: ref}, nil
	}
	return nil, fmt.Errorf("unknown constant pool tag %d at offset %d", tag, d.pos-1)
}

func newSingleIndexEntry(tag uint8, index uint16) ConstantPoolEntry {
	switch tag {
	case TagClass:
		return &ConstantClass{NameIndex: index}
	case TagString:
		return &ConstantString{StringIndex: index}
	case TagMethodType:
		return &ConstantMethodType{DescriptorIndex: index}
	case TagModule:
		return &ConstantModule{NameIndex: index}
	default:
		return &ConstantPackage{NameIndex: index}
	}
}

func newDoubleIndexEntry(tag uint8, first, second uint16) ConstantPoolEntry {
	switch tag {
	case TagFieldref:
		return &ConstantFieldref{ClassIndex: first, NameAndTypeIndex: second}
	case TagMethodref:
		return &ConstantMethodref{ClassIndex: first, NameAndTypeIndex: second}
	case TagInterfaceMethodref:
		return &ConstantInterfaceMethodref{ClassIndex: first, NameAndTypeIndex: second}
	case TagNameAndType:
		return &ConstantNameAndType{NameIndex: first, DescriptorIndex: second}
	case TagDynamic:
		return &ConstantDynamic{BootstrapMethodAttrIndex: first, NameAndTypeIndex: second}
	default:
		return &ConstantInvokeDynamic{BootstrapMethodAttrIndex: first, NameAndTypeIndex: second}
	}
}

func tagName(tag uint8) string {
	switch tag {
	case TagUtf8:
		return "Utf8"
	case TagInteger:
		return "Integer"
	case TagFloat:
		return "Float"
	case TagLong:
		return "Long"
	case TagDouble:
		return "Double"
	case TagClass:
		return "Class"
	case TagString:
		return "String"
	case TagFieldref:
		return "Fieldref"
	case TagMethodref:
		return "Methodref"
	case TagInterfaceMethodref:
		return "InterfaceMethodref"
	case TagNameAndType:
		return "NameAndType"
	case TagMethodHandle:
		return "MethodHandle"
	case TagMethodType:
		return "MethodType"
	case TagDynamic:
		return "Dynamic"
	case TagInvokeDynamic:
		return "InvokeDynamic"
	case TagModule:
		return "Module"
	case TagPackage:
		return "Package"
	}
	return fmt.Sprintf("tag(%d)", tag)
}

// entryAt returns the entry at index, or an error if the slot is out of
// range or empty.
func entryAt(pool []ConstantPoolEntry, index uint16) (ConstantPoolEntry, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d", index)
	}
	return pool[index], nil
}

// GetUtf8 returns the Utf8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	entry, err := entryAt(pool, index)
	if err != nil {
		return "", err
	}
	utf8, ok := entry.(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, entry.Tag())
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	entry, err := entryAt(pool, classIndex)
	if err != nil {
		return "", err
	}
	class, ok := entry.(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", classIndex)
	}
	return GetUtf8(pool, class.NameIndex)
}

// GetNameAndType returns the name and descriptor of a CONSTANT_NameAndType entry.
func GetNameAndType(pool []ConstantPoolEntry, index uint16) (name, descriptor string, err error) {
	entry, err := entryAt(pool, index)
	if err != nil {
		return "", "", fmt.Errorf("invalid NameAndType index %d", index)
	}
	nat, ok := entry.(*ConstantNameAndType)
	if !ok {
		return "", "", fmt.Errorf("constant pool index %d is not NameAndType", index)
	}
	name, err = GetUtf8(pool, nat.NameIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving name: %w", err)
	}
	descriptor, err = GetUtf8(pool, nat.DescriptorIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving descriptor: %w", err)
	}
	return name, descriptor, nil
}

// MethodRefInfo holds resolved method reference info.
type MethodRefInfo struct {
	ClassName  string
	MethodName string
	Descriptor string
	// Interface is true when the reference came from a CONSTANT_InterfaceMethodref.
	Interface bool
}

func resolveMember(pool []ConstantPoolEntry, kind string, classIndex, natIndex uint16) (owner, name, desc string, err error) {
	owner, err = GetClassName(pool, classIndex)
	if err != nil {
		return "", "", "", fmt.Errorf("resolving %s class: %w", kind, err)
	}
	name, desc, err = GetNameAndType(pool, natIndex)
	if err != nil {
		return "", "", "", fmt.Errorf("resolving %s: %w", kind, err)
	}
	return owner, name, desc, nil
}

// ResolveMethodref resolves a CONSTANT_Methodref entry.
func ResolveMethodref(pool []ConstantPoolEntry, index uint16) (*MethodRefInfo, error) {
	entry, err := entryAt(pool, index)
	if err != nil {
		return nil, err
	}
	mref, ok := entry.(*ConstantMethodref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not Methodref", index)
	}
	owner, name, desc, err := resolveMember(pool, "Methodref", mref.ClassIndex, mref.NameAndTypeIndex)
	if err != nil {
		return nil, err
	}
	return &MethodRefInfo{ClassName: owner, MethodName: name, Descriptor: desc}, nil
}

// ResolveInterfaceMethodref resolves a CONSTANT_InterfaceMethodref entry.
func ResolveInterfaceMethodref(pool []ConstantPoolEntry, index uint16) (*MethodRefInfo, error) {
	entry, err := entryAt(pool, index)
	if err != nil {
		return nil, err
	}
	mref, ok := entry.(*ConstantInterfaceMethodref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not InterfaceMethodref", index)
	}
	owner, name, desc, err := resolveMember(pool, "InterfaceMethodref", mref.ClassIndex, mref.NameAndTypeIndex)
	if err != nil {
		return nil, err
	}
	return &MethodRefInfo{ClassName: owner, MethodName: name, Descriptor: desc, Interface: true}, nil
}

// FieldRefInfo holds resolved field reference info.
type FieldRefInfo struct {
	ClassName  string
	FieldName  string
	Descriptor string
}

// ResolveFieldref resolves a CONSTANT_Fieldref entry.
func ResolveFieldref(pool []ConstantPoolEntry, index uint16) (*FieldRefInfo, error) {
	entry, err := entryAt(pool, index)
	if err != nil {
		return nil, err
	}
	fref, ok := entry.(*ConstantFieldref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not Fieldref", index)
	}
	owner, name, desc, err := resolveMember(pool, "Fieldref", fref.ClassIndex, fref.NameAndTypeIndex)
	if err != nil {
		return nil, err
	}
	return &FieldRefInfo{ClassName: owner, FieldName: name, Descriptor: desc}, nil
}

// Method handle reference kinds
const (
	RefGetField         = 1
	RefGetStatic        = 2
	RefPutField         = 3
	RefPutStatic        = 4
	RefInvokeVirtual    = 5
	RefInvokeStatic     = 6
	RefInvokeSpecial    = 7
	RefNewInvokeSpecial = 8
	RefInvokeInterface  = 9
)

// MethodHandleInfo holds a resolved CONSTANT_MethodHandle that points at a method.
type MethodHandleInfo struct {
	Kind   uint8
	Method MethodRefInfo
}

// ResolveMethodHandle resolves a CONSTANT_MethodHandle entry whose reference
// is a method (kinds 5 through 9).
func ResolveMethodHandle(pool []ConstantPoolEntry, index uint16) (*MethodHandleInfo, error) {
	entry, err := entryAt(pool, index)
	if err != nil {
		return nil, err
	}
	mh, ok := entry.(*ConstantMethodHandle)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not MethodHandle", index)
	}
	if mh.ReferenceKind < RefInvokeVirtual || mh.ReferenceKind > RefInvokeInterface {
		return nil, fmt.Errorf("MethodHandle at index %d has non-method kind %d", index, mh.ReferenceKind)
	}
	ref, err := entryAt(pool, mh.ReferenceIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving MethodHandle reference: %w", err)
	}
	var info *MethodRefInfo
	switch ref.(type) {
	case *ConstantMethodref:
		info, err = ResolveMethodref(pool, mh.ReferenceIndex)
	case *ConstantInterfaceMethodref:
		info, err = ResolveInterfaceMethodref(pool, mh.ReferenceIndex)
	default:
		return nil, fmt.Errorf("MethodHandle at index %d references tag %d", index, ref.Tag())
	}
	if err != nil {
		return nil, err
	}
	return &MethodHandleInfo{Kind: mh.ReferenceKind, Method: *info}, nil
}

// AddUtf8 returns the index of a Utf8 entry holding s, appending one if the
// pool has none.
func (cf *ClassFile) AddUtf8(s string) (uint16, error) {
	for i, e := range cf.ConstantPool {
		if u, ok := e.(*ConstantUtf8); ok && u.Value == s {
			return uint16(i), nil
		}
	}
	return cf.addEntry(&ConstantUtf8{Value: s})
}

// AddClass returns the index of a Class entry naming name, appending the
// entry (and its Utf8) if needed.
func (cf *ClassFile) AddClass(name string) (uint16, error) {
	nameIndex, err := cf.AddUtf8(name)
	if err != nil {
		return 0, err
	}
	for i, e := range cf.ConstantPool {
		if c, ok := e.(*ConstantClass); ok && c.NameIndex == nameIndex {
			return uint16(i), nil
		}
	}
	return cf.addEntry(&ConstantClass{NameIndex: nameIndex})
}

// AddNameAndType returns the index of a NameAndType entry for name and
// descriptor, appending entries if needed.
func (cf *ClassFile) AddNameAndType(name, descriptor string) (uint16, error) {
	nameIndex, err := cf.AddUtf8(name)
	if err != nil {
		return 0, err
	}
	descIndex, err := cf.AddUtf8(descriptor)
	if err != nil {
		return 0, err
	}
	for i, e := range cf.ConstantPool {
		if nat, ok := e.(*ConstantNameAndType); ok && nat.NameIndex == nameIndex && nat.DescriptorIndex == descIndex {
			return uint16(i), nil
		}
	}
	return cf.addEntry(&ConstantNameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex})
}

func (cf *ClassFile) addEntry(e ConstantPoolEntry) (uint16, error) {
	if len(cf.ConstantPool) == 0 {
		cf.ConstantPool = append(cf.ConstantPool, nil)
	}
	if len(cf.ConstantPool) >= maxPoolSize {
		return 0, fmt.Errorf("constant pool is full (%d entries)", len(cf.ConstantPool))
	}
	cf.ConstantPool = append(cf.ConstantPool, e)
	return uint16(len(cf.ConstantPool) - 1), nil
}
