package schema

import "google.golang.org/genai"

// GenAI converts the schema into a Gemini response or parameter schema.
// The zero Schema converts to nil.
func (s Schema) GenAI() *genai.Schema {
	if s.root == nil {
		return nil
	}
	return toGenAI(*s.root)
}

func toGenAI(f Field) *genai.Schema {
	out := &genai.Schema{Description: f.Description}
	switch f.Type {
	case TypeString:
		out.Type = genai.TypeString
		out.Enum = f.Enum
		if f.MinLength > 0 {
			out.MinLength = genai.Ptr(int64(f.MinLength))
		}
	case TypeNumber:
		out.Type = genai.TypeNumber
	case TypeInteger:
		out.Type = genai.TypeInteger
	case TypeBoolean:
		out.Type = genai.TypeBoolean
	case TypeArray:
		out.Type = genai.TypeArray
		if f.Items != nil {
			out.Items = toGenAI(*f.Items)
		}
		if f.MinItems > 0 {
			out.MinItems = genai.Ptr(int64(f.MinItems))
		}
	case TypeObject:
		out.Type = genai.TypeObject
		out.Properties = make(map[string]*genai.Schema, len(f.Fields))
		for _, child := range f.Fields {
			out.Properties[child.Name] = toGenAI(child)
			out.PropertyOrdering = append(out.PropertyOrdering, child.Name)
			if child.Mandatory {
				out.Required = append(out.Required, child.Name)
			}
		}
	}
	return out
}

// JSONSchema renders the schema as a JSON Schema document. The zero Schema
// renders as an unconstrained object.
func (s Schema) JSONSchema() map[string]any {
	if s.root == nil {
		return map[string]any{"type": "object"}
	}
	return toJSONSchema(*s.root)
}

func toJSONSchema(f Field) map[string]any {
	out := map[string]any{}
	if f.Description != "" {
		out["description"] = f.Description
	}
	switch f.Type {
	case TypeAny:
		return out
	case TypeString:
		if len(f.Enum) > 0 {
			out["enum"] = f.Enum
		}
		if f.MinLength > 0 {
			out["minLength"] = f.MinLength
		}
	case TypeArray:
		if f.Items != nil {
			out["items"] = toJSONSchema(*f.Items)
		}
		if f.MinItems > 0 {
			out["minItems"] = f.MinItems
		}
	case TypeObject:
		props := make(map[string]any, len(f.Fields))
		required := []string{}
		for _, child := range f.Fields {
			props[child.Name] = toJSONSchema(child)
			if child.Mandatory {
				required = append(required, child.Name)
			}
		}
		out["properties"] = props
		if len(required) > 0 {
			out["required"] = required
		}
	}
	out["type"] = f.Type.String()
	return out
}
