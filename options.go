package memown

import (
	"reflect"
	"unsafe"
)

// Destroyer is implemented by types that need teardown before their memory is
// returned. Handles call Destroy on the type they were constructed with, no
// matter which view type currently owns the object.
//
// When several embedded fields have a Destroy method, Go promotes none of
// them. If the constructed type does not declare its own Destroy, each
// embedded part's Destroy is called instead, last embedded field first.
type Destroyer interface {
	Destroy()
}

// Option configures a factory call.
type Option[T any] func(*options[T])

type options[T any] struct {
	onDestroy []func(*T)
}

// OnDestroy registers fn to run on every object (or array element) the
// handle destroys, after Destroy and before the memory is cleared.
func OnDestroy[T any](fn func(*T)) Option[T] {
	return func(o *options[T]) {
		o.onDestroy = append(o.onDestroy, fn)
	}
}

// destroyer builds the teardown for one value of the construction-time type.
func destroyer[T any](opts []Option[T]) func(*T) {
	var o options[T]
	for _, opt := range opts {
		opt(&o)
	}
	hooks := o.onDestroy
	parts := embeddedDestroyers(reflect.TypeFor[T](), 0)
	return func(p *T) {
		if d, ok := any(p).(Destroyer); ok {
			d.Destroy()
		}
		for _, part := range parts {
			part.at(unsafe.Pointer(p)).Destroy()
		}
		for _, h := range hooks {
			h(p)
		}
		var zero T
		*p = zero
	}
}

var destroyerType = reflect.TypeFor[Destroyer]()

// destroyablePart is an embedded field found at offset bytes into the outer
// object.
type destroyablePart struct {
	offset uintptr
	typ    reflect.Type
}

func (d destroyablePart) at(base unsafe.Pointer) Destroyer {
	return reflect.NewAt(d.typ, unsafe.Add(base, d.offset)).Interface().(Destroyer)
}

// embeddedDestroyers finds the embedded fields of t whose Destroy is not
// promoted to *t, in reverse embedding order. It returns nil if *t has a
// Destroy method of its own or a single promoted one.
func embeddedDestroyers(t reflect.Type, offset uintptr) []destroyablePart {
	if t.Kind() != reflect.Struct || reflect.PointerTo(t).Implements(destroyerType) {
		return nil
	}
	var parts []destroyablePart
	for i := t.NumField() - 1; i >= 0; i-- {
		f := t.Field(i)
		if !f.Anonymous || f.Type.Kind() == reflect.Pointer {
			continue
		}
		if reflect.PointerTo(f.Type).Implements(destroyerType) {
			parts = append(parts, destroyablePart{offset + f.Offset, f.Type})
			continue
		}
		parts = append(parts, embeddedDestroyers(f.Type, offset+f.Offset)...)
	}
	return parts
}
