// Package schema represents tool and skill input/output contracts as
// first-class values: an AST with two consumers, a validator and a
// model-facing serializer. Nothing here relies on reflection over Go
// struct tags — schemas are built by hand or parsed from the manifest's
// own JSON, matching how the tool catalogue is described to the model.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Kind enumerates the shapes a schema node can take.
type Kind string

const (
	KindObject Kind = "object"
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "boolean"
	KindArray  Kind = "array"
	KindEnum   Kind = "enum"
)

// Type is a schema node. Object nodes carry Properties and Required;
// Array nodes carry Items; Enum nodes carry Values; String/Number/Bool
// are leaves. Default, when non-nil, is applied by Validate when the
// field is absent from the input.
type Type struct {
	Kind        Kind
	Description string
	Properties  map[string]*Type
	Required    []string
	Items       *Type
	Values      []string
	Default     any
}

// Object builds an object schema node.
func Object(properties map[string]*Type, required ...string) *Type {
	return &Type{Kind: KindObject, Properties: properties, Required: required}
}

// String builds a string leaf, optionally restricted to Values when len>0
// (use Enum for that case instead, kept separate so JSON-schema output
// matches what most model providers expect for free-form strings).
func String(description string) *Type {
	return &Type{Kind: KindString, Description: description}
}

// Number builds a numeric leaf.
func Number(description string) *Type {
	return &Type{Kind: KindNumber, Description: description}
}

// Bool builds a boolean leaf.
func Bool(description string) *Type {
	return &Type{Kind: KindBool, Description: description}
}

// Array builds an array schema node of the given item type.
func Array(items *Type, description string) *Type {
	return &Type{Kind: KindArray, Items: items, Description: description}
}

// Enum builds a closed-set string node.
func Enum(description string, values ...string) *Type {
	return &Type{Kind: KindEnum, Description: description, Values: values}
}

// WithDefault returns a copy of t carrying the given default value.
func (t *Type) WithDefault(v any) *Type {
	cp := *t
	cp.Default = v
	return &cp
}

// Violation describes one validation failure, reported with a JSON-pointer
// style path so callers can build a human-readable violation list.
type Violation struct {
	Path   string
	Reason string
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Reason
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Reason)
}

// Validate checks value against the schema, applying defaults for absent
// object fields in place (value must be a map[string]any for object
// schemas; Validate mutates it to fill defaults). Returns every violation
// found, not just the first, so callers can present a full list.
func Validate(t *Type, value any) []Violation {
	var out []Violation
	validate(t, value, "", &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func validate(t *Type, value any, path string, out *[]Violation) {
	if t == nil {
		return
	}
	switch t.Kind {
	case KindObject:
		m, ok := value.(map[string]any)
		if !ok {
			*out = append(*out, Violation{path, "expected object"})
			return
		}
		for _, req := range t.Required {
			if _, present := m[req]; !present {
				*out = append(*out, Violation{joinPath(path, req), "required field missing"})
			}
		}
		for name, prop := range t.Properties {
			v, present := m[name]
			if !present {
				if prop.Default != nil {
					m[name] = prop.Default
				}
				continue
			}
			validate(prop, v, joinPath(path, name), out)
		}
	case KindString:
		if _, ok := value.(string); !ok {
			*out = append(*out, Violation{path, "expected string"})
		}
	case KindNumber:
		switch value.(type) {
		case float64, float32, int, int64, int32:
		default:
			*out = append(*out, Violation{path, "expected number"})
		}
	case KindBool:
		if _, ok := value.(bool); !ok {
			*out = append(*out, Violation{path, "expected boolean"})
		}
	case KindEnum:
		s, ok := value.(string)
		if !ok {
			*out = append(*out, Violation{path, "expected string"})
			return
		}
		found := false
		for _, v := range t.Values {
			if v == s {
				found = true
				break
			}
		}
		if !found {
			*out = append(*out, Violation{path, fmt.Sprintf("must be one of %s", strings.Join(t.Values, ", "))})
		}
	case KindArray:
		arr, ok := value.([]any)
		if !ok {
			*out = append(*out, Violation{path, "expected array"})
			return
		}
		for i, item := range arr {
			validate(t.Items, item, fmt.Sprintf("%s[%d]", path, i), out)
		}
	}
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}

// ToJSONSchema serializes t into the plain map shape expected by
// model-facing function/tool definitions (the common {"type":...,
// "properties":...,"required":[...]} subset of JSON Schema).
func ToJSONSchema(t *Type) map[string]any {
	if t == nil {
		return map[string]any{"type": "object"}
	}
	m := map[string]any{}
	switch t.Kind {
	case KindObject:
		props := map[string]any{}
		for name, p := range t.Properties {
			props[name] = ToJSONSchema(p)
		}
		m["type"] = "object"
		m["properties"] = props
		if len(t.Required) > 0 {
			m["required"] = append([]string{}, t.Required...)
		}
	case KindString:
		m["type"] = "string"
	case KindNumber:
		m["type"] = "number"
	case KindBool:
		m["type"] = "boolean"
	case KindEnum:
		m["type"] = "string"
		m["enum"] = append([]string{}, t.Values...)
	case KindArray:
		m["type"] = "array"
		m["items"] = ToJSONSchema(t.Items)
	}
	if t.Description != "" {
		m["description"] = t.Description
	}
	return m
}
