package memown

import (
	"reflect"
	"unsafe"

	lru "github.com/hashicorp/golang-lru/v2"
)

const layoutCacheSize = 512

type layout struct {
	size        uintptr
	align       uintptr
	pointerFree bool
}

// layouts caches per-type results; walking a struct with reflect on every
// allocation shows up in profiles.
var layouts, _ = lru.New[reflect.Type, layout](layoutCacheSize)

func layoutOf[T any]() layout {
	t := reflect.TypeFor[T]()
	if l, ok := layouts.Get(t); ok {
		return l
	}
	var zero T
	l := layout{
		size:        unsafe.Sizeof(zero),
		align:       unsafe.Alignof(zero),
		pointerFree: pointerFree(t),
	}
	layouts.Add(t, l)
	return l
}

// Storable reports whether values of T may be placed in allocator memory,
// i.e. whether T's layout holds no Go pointers.
func Storable[T any]() bool {
	return layoutOf[T]().pointerFree
}

func pointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || pointerFree(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !pointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func rejectLayout(t reflect.Type) {
	log.WithField("type", t.String()).Debug("refusing to place a type with Go pointers in allocator memory")
}
