// Package schema provides explicit, serializable descriptors for agent input
// and output shapes. Descriptors are plain data so that they can live in the
// YAML agent catalog and be stored alongside prompt configuration.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Type is a JSON value type
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeAny     Type = "any"
)

// Schema describes the shape of a JSON value
type Schema struct {
	Type        Type               `json:"type" yaml:"type"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	Enum        []any              `json:"enum,omitempty" yaml:"enum,omitempty"`
	MinLength   *int               `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength   *int               `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	MinItems    *int               `json:"min_items,omitempty" yaml:"min_items,omitempty"`
	MaxItems    *int               `json:"max_items,omitempty" yaml:"max_items,omitempty"`
}

// ValidationError reports the first conformance failure found
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// IsStructured reports whether values of this schema are JSON objects or arrays
func (s *Schema) IsStructured() bool {
	if s == nil {
		return false
	}
	return s.Type == TypeObject || s.Type == TypeArray
}

// Check verifies that the descriptor itself is well formed. A nil schema is valid.
func (s *Schema) Check() error {
	if s == nil {
		return nil
	}
	return s.check("$")
}

func (s *Schema) check(path string) error {
	switch s.Type {
	case TypeObject, TypeArray, TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeAny:
	default:
		return goerr.New("unknown schema type", goerr.V("path", path), goerr.V("type", s.Type))
	}

	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok && s.Type == TypeObject {
			return goerr.New("required property is not declared", goerr.V("path", path), goerr.V("property", name))
		}
	}
	for name, prop := range s.Properties {
		if prop == nil {
			return goerr.New("property schema is nil", goerr.V("path", path), goerr.V("property", name))
		}
		if err := prop.check(path + "." + name); err != nil {
			return err
		}
	}
	if s.Items != nil {
		if err := s.Items.check(path + "[]"); err != nil {
			return err
		}
	}
	return nil
}

// Normalize converts an arbitrary Go value into its generic JSON form
// (map[string]any, []any, float64, string, bool, nil) so that it can be
// validated and rendered uniformly.
func Normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, goerr.Wrap(err, "value is not JSON serializable")
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, goerr.Wrap(err, "failed to normalize value")
	}
	return out, nil
}

// Validate checks v against the schema. A nil schema accepts anything.
func (s *Schema) Validate(v any) error {
	if s == nil {
		return nil
	}
	normalized, err := Normalize(v)
	if err != nil {
		return &ValidationError{Path: "$", Message: err.Error()}
	}
	return s.validate("$", normalized)
}

func (s *Schema) validate(path string, v any) error {
	if s.Type == TypeAny {
		return s.validateEnum(path, v)
	}

	switch s.Type {
	case TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return typeMismatch(path, s.Type, v)
		}
		for _, name := range s.Required {
			val, exists := obj[name]
			if !exists || val == nil {
				return &ValidationError{Path: path + "." + name, Message: "required field is missing"}
			}
		}
		names := make([]string, 0, len(obj))
		for name := range obj {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			prop, declared := s.Properties[name]
			if !declared || obj[name] == nil {
				continue
			}
			if err := prop.validate(path+"."+name, obj[name]); err != nil {
				return err
			}
		}

	case TypeArray:
		arr, ok := v.([]any)
		if !ok {
			return typeMismatch(path, s.Type, v)
		}
		if s.MinItems != nil && len(arr) < *s.MinItems {
			return &ValidationError{Path: path, Message: fmt.Sprintf("expected at least %d items, got %d", *s.MinItems, len(arr))}
		}
		if s.MaxItems != nil && len(arr) > *s.MaxItems {
			return &ValidationError{Path: path, Message: fmt.Sprintf("expected at most %d items, got %d", *s.MaxItems, len(arr))}
		}
		if s.Items != nil {
			for i, item := range arr {
				if err := s.Items.validate(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
					return err
				}
			}
		}

	case TypeString:
		str, ok := v.(string)
		if !ok {
			return typeMismatch(path, s.Type, v)
		}
		length := len([]rune(str))
		if s.MinLength != nil && length < *s.MinLength {
			return &ValidationError{Path: path, Message: fmt.Sprintf("expected length >= %d, got %d", *s.MinLength, length)}
		}
		if s.MaxLength != nil && length > *s.MaxLength {
			return &ValidationError{Path: path, Message: fmt.Sprintf("expected length <= %d, got %d", *s.MaxLength, length)}
		}

	case TypeNumber, TypeInteger:
		num, ok := v.(float64)
		if !ok {
			return typeMismatch(path, s.Type, v)
		}
		if s.Type == TypeInteger && num != math.Trunc(num) {
			return &ValidationError{Path: path, Message: fmt.Sprintf("expected integer, got %v", num)}
		}
		if s.Minimum != nil && num < *s.Minimum {
			return &ValidationError{Path: path, Message: fmt.Sprintf("expected >= %v, got %v", *s.Minimum, num)}
		}
		if s.Maximum != nil && num > *s.Maximum {
			return &ValidationError{Path: path, Message: fmt.Sprintf("expected <= %v, got %v", *s.Maximum, num)}
		}

	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return typeMismatch(path, s.Type, v)
		}

	default:
		return &ValidationError{Path: path, Message: fmt.Sprintf("unknown schema type %q", s.Type)}
	}

	return s.validateEnum(path, v)
}

func (s *Schema) validateEnum(path string, v any) error {
	if len(s.Enum) == 0 {
		return nil
	}
	for _, candidate := range s.Enum {
		normalized, err := Normalize(candidate)
		if err != nil {
			continue
		}
		if fmt.Sprint(normalized) == fmt.Sprint(v) {
			return nil
		}
	}

	options := make([]string, len(s.Enum))
	for i, e := range s.Enum {
		options[i] = fmt.Sprint(e)
	}
	return &ValidationError{Path: path, Message: fmt.Sprintf("value %v is not one of [%s]", v, strings.Join(options, ", "))}
}

func typeMismatch(path string, want Type, v any) *ValidationError {
	return &ValidationError{Path: path, Message: fmt.Sprintf("expected %s, got %s", want, jsonTypeOf(v))}
}

func jsonTypeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
