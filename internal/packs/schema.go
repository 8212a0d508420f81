// ABOUTME: Minimal JSON-schema subset used to validate tool arguments.
// ABOUTME: Supports object properties, scalar types, required, enum, and date format.

package packs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"
)

// ErrInvalidToolArgs indicates arguments that do not satisfy a tool's schema.
var ErrInvalidToolArgs = errors.New("invalid tool arguments")

// dateLayout is the accepted shape for "format": "date" strings.
const dateLayout = "2006-01-02"

// Schema is a parsed tool parameter contract. Only object schemas with
// scalar properties are supported.
type Schema struct {
	Type                 string               `json:"type"`
	Properties           map[string]*Property `json:"properties"`
	Required             []string             `json:"required"`
	AdditionalProperties *bool                `json:"additionalProperties"`
}

// Property is one named argument.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum"`
	Format      string   `json:"format"`
	Minimum     *float64 `json:"minimum"`
	Maximum     *float64 `json:"maximum"`
}

// ParseSchema parses and checks a tool's input schema document.
func ParseSchema(doc string) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	if s.Type != "object" {
		return nil, fmt.Errorf("schema type must be object, got %q", s.Type)
	}
	for name, p := range s.Properties {
		if p == nil {
			return nil, fmt.Errorf("property %q has no definition", name)
		}
		switch p.Type {
		case "string", "integer", "number", "boolean":
		default:
			return nil, fmt.Errorf("property %q: unsupported type %q", name, p.Type)
		}
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return nil, fmt.Errorf("required property %q is not declared", name)
		}
	}
	return &s, nil
}

// Validate checks raw arguments against the schema. Empty input is treated
// as an empty object. Null values count as absent.
func (s *Schema) Validate(raw json.RawMessage) error {
	args, err := decodeArgs(raw)
	if err != nil {
		return err
	}

	for _, name := range s.Required {
		if v, ok := args[name]; !ok || v == nil {
			return fmt.Errorf("%w: missing required field %q", ErrInvalidToolArgs, name)
		}
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := args[name]
		p, ok := s.Properties[name]
		if !ok {
			if s.AdditionalProperties != nil && !*s.AdditionalProperties {
				return fmt.Errorf("%w: unexpected field %q", ErrInvalidToolArgs, name)
			}
			continue
		}
		if v == nil {
			continue
		}
		if err := p.check(v); err != nil {
			return fmt.Errorf("%w: field %q %v", ErrInvalidToolArgs, name, err)
		}
	}
	return nil
}

func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("%w: arguments must be a JSON object", ErrInvalidToolArgs)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func (p *Property) check(v any) error {
	switch p.Type {
	case "string":
		s, ok := v.(string)
		if !ok {
			return errors.New("must be a string")
		}
		if len(p.Enum) > 0 && !slices.Contains(p.Enum, s) {
			return fmt.Errorf("must be one of %v", p.Enum)
		}
		if p.Format == "date" {
			if _, err := time.Parse(dateLayout, s); err != nil {
				return errors.New("must be a date in YYYY-MM-DD form")
			}
		}
	case "integer":
		n, ok := v.(json.Number)
		if !ok {
			return errors.New("must be an integer")
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return errors.New("must be an integer")
		}
		return p.checkRange(f)
	case "number":
		n, ok := v.(json.Number)
		if !ok {
			return errors.New("must be a number")
		}
		f, err := n.Float64()
		if err != nil {
			return errors.New("must be a number")
		}
		return p.checkRange(f)
	case "boolean":
		if _, ok := v.(bool); !ok {
			return errors.New("must be a boolean")
		}
	}
	return nil
}

func (p *Property) checkRange(f float64) error {
	if p.Minimum != nil && f < *p.Minimum {
		return fmt.Errorf("must be >= %v", *p.Minimum)
	}
	if p.Maximum != nil && f > *p.Maximum {
		return fmt.Errorf("must be <= %v", *p.Maximum)
	}
	return nil
}
