package models

// ValueKind identifies which scalar a metadata Value carries.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueInt
	ValueFloat
	ValueBool
)

// Value is a single document metadata value. Metadata is restricted to a
// closed set of scalar kinds so that mapping onto a store schema stays total:
// every value has a well-defined textual and numeric representation.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// String wraps a string as a metadata Value.
func String(s string) Value { return Value{Kind: ValueString, Str: s} }

// Int wraps an integer as a metadata Value.
func Int(i int64) Value { return Value{Kind: ValueInt, Int: i} }

// Float wraps a float as a metadata Value.
func Float(f float64) Value { return Value{Kind: ValueFloat, Float: f} }

// Bool wraps a bool as a metadata Value.
func Bool(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// Interface returns the underlying scalar for logging and JSON encoding.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueBool:
		return v.Bool
	default:
		return v.Str
	}
}

// Metadata is an open string-keyed mapping of scalar values attached to a
// document and carried through to its chunks.
type Metadata map[string]Value

// Clone returns a copy of the metadata so chunks never share the parent map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
