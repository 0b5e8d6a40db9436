package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Sizes fixed by the instruction encoding.
const (
	PtrSize  = 8
	SpanSize = PtrSize + 8 // data pointer + element count
)

// Field is a named struct member. Field order is significant: a field's
// offset is the sum of the sizes of the fields before it.
type Field struct {
	Name string
	Type *Type
}

// Catalog registers struct layouts and answers size/field queries for every
// type shape.
type Catalog struct {
	structs map[string][]Field
}

func NewCatalog() *Catalog {
	return &Catalog{structs: make(map[string][]Field)}
}

// Register adds a struct layout. Returns false if the name is taken.
func (c *Catalog) Register(name string, fields []Field) bool {
	if _, ok := c.structs[name]; ok {
		return false
	}
	c.structs[name] = fields
	return true
}

// Contains reports whether the type is fully known to the catalog.
func (c *Catalog) Contains(t *Type) bool {
	switch t.Kind {
	case KindStruct:
		_, ok := c.structs[t.Name]
		return ok
	case KindArray, KindSpan, KindPointer, KindReference:
		return c.Contains(t.Elem)
	case KindFuncPtr, KindArena:
		return true
	default:
		return t.IsFundamental()
	}
}

// SizeOf computes the byte size of a value of the given type. Span and array
// sizes never include the pointed-to data.
func (c *Catalog) SizeOf(t *Type) (int, error) {
	switch t.Kind {
	case KindNull, KindBool, KindChar:
		return 1, nil
	case KindI32:
		return 4, nil
	case KindI64, KindU64, KindF64, KindNullPtr:
		return 8, nil
	case KindStruct:
		fields, ok := c.structs[t.Name]
		if !ok {
			return 0, fmt.Errorf("unknown type '%s'", t.Name)
		}
		size := 0
		for _, f := range fields {
			fs, err := c.SizeOf(f.Type)
			if err != nil {
				return 0, err
			}
			size += fs
		}
		if size == 0 {
			// A value of an empty struct still occupies addressable space.
			size = 1
		}
		return size, nil
	case KindArray:
		elem, err := c.SizeOf(t.Elem)
		if err != nil {
			return 0, err
		}
		count, err := safecast.Conv[int](t.Count)
		if err != nil {
			return 0, fmt.Errorf("array length overflow: %w", err)
		}
		return elem * count, nil
	case KindPointer, KindReference, KindFuncPtr, KindArena:
		return PtrSize, nil
	case KindSpan:
		return SpanSize, nil
	default:
		return 0, fmt.Errorf("type '%s' has no size", t)
	}
}

// FieldsOf returns the ordered field list of a struct type, or nil for
// anything else.
func (c *Catalog) FieldsOf(t *Type) []Field {
	return c.structs[t.RemoveConst().Name]
}

// FieldOffset finds a field by name and returns its byte offset within the
// struct along with its type.
func (c *Catalog) FieldOffset(t *Type, name string) (int, *Type, error) {
	offset := 0
	for _, f := range c.FieldsOf(t) {
		if f.Name == name {
			return offset, f.Type, nil
		}
		fs, err := c.SizeOf(f.Type)
		if err != nil {
			return 0, nil, err
		}
		offset += fs
	}
	return 0, nil, fmt.Errorf("could not find field '%s' for type '%s'", name, t.RemoveConst())
}
