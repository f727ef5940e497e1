package capture

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

// FieldHook injects a Backend into a named field of a struct, exported or
// not. It is the privileged hook for generators that keep their dumper in a
// private field the way the JDK's lambda metafactory does.
//
// The generator must not be synthesizing classes while Inject or Restore run.
type FieldHook struct {
	target any
	field  string

	mu       sync.Mutex
	slot     reflect.Value
	prev     reflect.Value
	injected bool
}

// NewFieldHook returns a hook for field of target, which must be a pointer
// to a struct.
func NewFieldHook(target any, field string) *FieldHook {
	return &FieldHook{target: target, field: field}
}

func (h *FieldHook) Name() string {
	return fmt.Sprintf("%T.%s", h.target, h.field)
}

func (h *FieldHook) lookup() (reflect.Value, error) {
	v := reflect.ValueOf(h.target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: target %T is not a non-nil pointer", ErrUnsupportedRuntime, h.target)
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: target %T does not point to a struct", ErrUnsupportedRuntime, h.target)
	}
	f := v.FieldByName(h.field)
	if !f.IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: %s has no field %q", ErrUnsupportedRuntime, v.Type(), h.field)
	}
	// Unexported fields are read-only through reflect; go through their address.
	return reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem(), nil
}

func (h *FieldHook) Inject(b Backend) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if b == nil {
		return ErrNilBackend
	}
	slot, err := h.lookup()
	if err != nil {
		return &HookError{Hook: h.Name(), Err: err}
	}
	bv := reflect.ValueOf(b)
	if !bv.Type().AssignableTo(slot.Type()) {
		return &HookError{Hook: h.Name(), Err: fmt.Errorf("%w: field has type %s, which cannot hold %s", ErrUnsupportedRuntime, slot.Type(), bv.Type())}
	}
	if !h.injected {
		prev := reflect.New(slot.Type()).Elem()
		prev.Set(slot)
		h.prev = prev
		h.slot = slot
	}
	slot.Set(bv)
	h.injected = true
	return nil
}

func (h *FieldHook) Restore() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.injected {
		return nil
	}
	h.slot.Set(h.prev)
	h.slot, h.prev = reflect.Value{}, reflect.Value{}
	h.injected = false
	return nil
}

// VarHook injects a Backend into a Backend variable, for generators that
// export their extension point.
type VarHook struct {
	slot *Backend

	mu       sync.Mutex
	prev     Backend
	injected bool
}

// NewVarHook returns a hook for the variable slot points to.
func NewVarHook(slot *Backend) *VarHook {
	return &VarHook{slot: slot}
}

func (h *VarHook) Name() string { return "backend variable" }

func (h *VarHook) Inject(b Backend) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if b == nil {
		return ErrNilBackend
	}
	if h.slot == nil {
		return &HookError{Hook: h.Name(), Err: fmt.Errorf("%w: no extension point", ErrUnsupportedRuntime)}
	}
	if !h.injected {
		h.prev = *h.slot
	}
	*h.slot = b
	h.injected = true
	return nil
}

func (h *VarHook) Restore() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.injected {
		return nil
	}
	*h.slot = h.prev
	h.prev = nil
	h.injected = false
	return nil
}
