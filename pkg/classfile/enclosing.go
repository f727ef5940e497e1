package classfile

import (
	"encoding/binary"
	"fmt"
)

// EnclosingMethod is the decoded EnclosingMethod attribute of a local or
// anonymous class. Name and Descriptor are empty when the class is not
// enclosed by a method (for example, declared in an initializer).
type EnclosingMethod struct {
	Owner      string
	Name       string
	Descriptor string
}

// HasMethod reports whether the attribute names a method.
func (em EnclosingMethod) HasMethod() bool {
	return em.Name != ""
}

// EnclosingMethod decodes the EnclosingMethod attribute. It returns nil when
// the class has none.
func (cf *ClassFile) EnclosingMethod() (*EnclosingMethod, error) {
	attr := cf.FindAttribute(AttrEnclosingMethod)
	if attr == nil {
		return nil, nil
	}
	if len(attr.Data) != 4 {
		return nil, fmt.Errorf("EnclosingMethod attribute has length %d, want 4", len(attr.Data))
	}
	classIndex := binary.BigEndian.Uint16(attr.Data[0:2])
	methodIndex := binary.BigEndian.Uint16(attr.Data[2:4])

	owner, err := GetClassName(cf.ConstantPool, classIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving EnclosingMethod class: %w", err)
	}
	em := &EnclosingMethod{Owner: owner}
	if methodIndex == 0 {
		return em, nil
	}
	em.Name, em.Descriptor, err = GetNameAndType(cf.ConstantPool, methodIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving EnclosingMethod method: %w", err)
	}
	return em, nil
}

// SetEnclosingMethod replaces (or adds) the EnclosingMethod attribute,
// interning the constant pool entries it needs.
func (cf *ClassFile) SetEnclosingMethod(em EnclosingMethod) error {
	classIndex, err := cf.AddClass(em.Owner)
	if err != nil {
		return err
	}
	var methodIndex uint16
	if em.HasMethod() {
		methodIndex, err = cf.AddNameAndType(em.Name, em.Descriptor)
		if err != nil {
			return err
		}
	}
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], classIndex)
	binary.BigEndian.PutUint16(data[2:4], methodIndex)

	if attr := cf.FindAttribute(AttrEnclosingMethod); attr != nil {
		attr.Data = data
		return nil
	}
	nameIndex, err := cf.AddUtf8(AttrEnclosingMethod)
	if err != nil {
		return err
	}
	cf.Attributes = append(cf.Attributes, AttributeInfo{NameIndex: nameIndex, Name: AttrEnclosingMethod, Data: data})
	return nil
}
