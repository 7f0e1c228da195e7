// Package schema describes the accepted shape of flow inputs and outputs as
// explicit field-constraint descriptors and validates JSON-model values
// against them.
package schema

import (
	"fmt"
	"strings"
)

// Type is the primitive kind a field must carry.
type Type int

const (
	TypeAny Type = iota
	TypeString
	TypeNumber
	TypeInteger
	TypeBoolean
	TypeArray
	TypeObject
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return "any"
	}
}

// Field is a single constraint descriptor. Array fields describe their
// elements with Items; object fields list their properties in Fields, in the
// order they should be presented to the model.
type Field struct {
	Name        string
	Type        Type
	Mandatory   bool
	Enum        []string
	Items       *Field
	Fields      []Field
	MinLength   int
	MinItems    int
	Description string
}

// String declares a string field.
func String(name string) Field { return Field{Name: name, Type: TypeString} }

// Number declares a floating point field.
func Number(name string) Field { return Field{Name: name, Type: TypeNumber} }

// Integer declares an integral numeric field.
func Integer(name string) Field { return Field{Name: name, Type: TypeInteger} }

// Boolean declares a boolean field.
func Boolean(name string) Field { return Field{Name: name, Type: TypeBoolean} }

// Array declares a list field whose elements match item. The item name is ignored.
func Array(name string, item Field) Field {
	item.Name = ""
	return Field{Name: name, Type: TypeArray, Items: &item}
}

// Object declares a nested object field.
func Object(name string, fields ...Field) Field {
	return Field{Name: name, Type: TypeObject, Fields: fields}
}

// Required marks the field as mandatory.
func (f Field) Required() Field {
	f.Mandatory = true
	return f
}

// OneOf restricts a string field to the given values.
func (f Field) OneOf(values ...string) Field {
	f.Enum = append([]string(nil), values...)
	return f
}

// Min sets the minimum string length (strings) or element count (arrays).
func (f Field) Min(n int) Field {
	switch f.Type {
	case TypeArray:
		f.MinItems = n
	default:
		f.MinLength = n
	}
	return f
}

// Describe attaches a natural-language description, read by the model.
func (f Field) Describe(text string) Field {
	f.Description = text
	return f
}

// Schema is the root descriptor of a flow or tool value. The zero Schema
// accepts any value.
type Schema struct {
	root *Field
}

// Of returns an object schema with the given properties.
func Of(fields ...Field) Schema {
	root := Object("", fields...)
	return Schema{root: &root}
}

// ListOf returns a schema for a top-level list of item.
func ListOf(item Field) Schema {
	root := Array("", item)
	return Schema{root: &root}
}

// IsZero reports whether the schema places no constraints on a value.
func (s Schema) IsZero() bool { return s.root == nil }

// Root returns the root descriptor, or nil for the zero Schema.
func (s Schema) Root() *Field { return s.root }

// Field looks up a top-level property of an object schema.
func (s Schema) Field(name string) (Field, bool) {
	if s.root == nil {
		return Field{}, false
	}
	for _, f := range s.root.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Violation is one constraint a value failed to satisfy.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// ValidationError lists every violation found in a value.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("schema validation failed: %s", strings.Join(parts, "; "))
}

// Paths returns the violated paths in the order they were found.
func (e *ValidationError) Paths() []string {
	paths := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		paths[i] = v.Path
	}
	return paths
}
