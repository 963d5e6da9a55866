package storage

// Field distinguishes "leave this column untouched" from "set it, possibly to
// null" in partial-update calls such as UpdateProcessing. A zero Field[T] is
// untouched; Set wraps a value (including the zero value) as present.
type Field[T any] struct {
	present bool
	value   *T
}

// Set returns a Field carrying v as present.
func Set[T any](v T) Field[T] {
	return Field[T]{present: true, value: &v}
}

// SetNull returns a Field explicitly present but carrying no value.
func SetNull[T any]() Field[T] {
	return Field[T]{present: true, value: nil}
}

// Present reports whether the caller supplied this field at all.
func (f Field[T]) Present() bool { return f.present }

// Value returns the field's pointer (nil means explicit null).
func (f Field[T]) Value() *T { return f.value }
