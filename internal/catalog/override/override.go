// Package override implements the explicit-over-derived-over-default value
// holder used by every derived catalog property.
package override

// Source says where a resolved value came from.
type Source int

const (
	Default Source = iota
	Derived
	Explicit
)

func (s Source) String() string {
	switch s {
	case Explicit:
		return "explicit"
	case Derived:
		return "derived"
	default:
		return "default"
	}
}

// DeriveFunc computes a value from other inputs. ok is false when nothing can
// be derived yet.
type DeriveFunc[T any] func() (v T, ok bool)

// Field holds an optional explicit value in front of a derivation and a
// fallback. It is not safe for concurrent use; the owner synchronizes.
type Field[T any] struct {
	explicit *T
	derive   DeriveFunc[T]
	fallback T
}

// New builds a field. derive may be nil for fields that only have a default.
func New[T any](derive DeriveFunc[T], fallback T) Field[T] {
	return Field[T]{derive: derive, fallback: fallback}
}

// Get applies the cascade.
func (f *Field[T]) Get() T {
	v, _ := f.Resolve()
	return v
}

// Resolve is Get plus the source of the value.
func (f *Field[T]) Resolve() (T, Source) {
	if f.explicit != nil {
		return *f.explicit, Explicit
	}
	if f.derive != nil {
		if v, ok := f.derive(); ok {
			return v, Derived
		}
	}
	return f.fallback, Default
}

// Set stores an explicit value that wins over any later derivation.
func (f *Field[T]) Set(v T) {
	f.explicit = &v
}

// Unset drops the explicit value so the field derives again.
func (f *Field[T]) Unset() {
	f.explicit = nil
}

func (f *Field[T]) IsOverridden() bool {
	return f.explicit != nil
}

// Raw returns the explicit value only, as saved by serialization.
func (f *Field[T]) Raw() (T, bool) {
	if f.explicit == nil {
		var zero T
		return zero, false
	}
	return *f.explicit, true
}

// RawPtr is Raw in pointer form for optional encoded fields.
func (f *Field[T]) RawPtr() *T {
	if f.explicit == nil {
		return nil
	}
	v := *f.explicit
	return &v
}
