package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeBoolean Type = "boolean"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
)

// FormatDate marks a string holding an ISO 8601 calendar date.
const FormatDate = "date"

const datePattern = `^[0-9]{4}-[0-9]{2}-[0-9]{2}$`

// Schema is a provider-neutral description of structured output. Backends
// translate it into their own representation; Decode validates responses
// against it locally.
type Schema struct {
	// Name identifies the schema in errors and logs.
	Name        string
	Type        Type
	Description string
	Format      string
	Enum        []string
	Nullable    bool
	Properties  map[string]*Schema
	Required    []string
	// Order lists property names in the order the model should produce them.
	Order    []string
	Items    *Schema
	MinItems int

	once     sync.Once
	resolved *jsonschema.Resolved
	err      error
}

// Decode parses raw model output, validates it against s and unmarshals it into target.
func Decode(raw string, s *Schema, target any) error {
	cleaned := ExtractJSON(raw)

	var generic any
	if err := json.Unmarshal([]byte(cleaned), &generic); err != nil {
		return &SchemaValidationError{Schema: s.name(), Reason: "invalid json: " + err.Error(), Raw: raw}
	}

	if err := s.Validate(generic); err != nil {
		if sve, ok := err.(*SchemaValidationError); ok {
			sve.Raw = raw
		}
		return err
	}

	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return &SchemaValidationError{Schema: s.name(), Reason: err.Error(), Raw: raw}
	}

	return nil
}

// Validate checks a generically decoded JSON value against s.
func (s *Schema) Validate(v any) error {
	s.once.Do(func() {
		s.resolved, s.err = s.JSONSchema().Resolve(nil)
	})
	if s.err != nil {
		return fmt.Errorf("resolve %s schema: %w", s.name(), s.err)
	}

	if err := s.resolved.Validate(v); err != nil {
		location, reason := splitValidationError(err.Error())
		return &SchemaValidationError{Schema: s.name(), Path: instancePath(location), Reason: reason}
	}
	return nil
}

// JSONSchema renders s as a JSON Schema document.
func (s *Schema) JSONSchema() *jsonschema.Schema {
	out := &jsonschema.Schema{
		Type:          string(s.Type),
		Description:   s.Description,
		Format:        s.Format,
		Required:      s.Required,
		PropertyOrder: s.Order,
	}
	if s.Nullable {
		out.Type = ""
		out.Types = []string{"null", string(s.Type)}
	}
	if s.Format == FormatDate {
		out.Pattern = datePattern
	}
	for _, e := range s.Enum {
		out.Enum = append(out.Enum, e)
	}
	if s.Nullable && len(out.Enum) > 0 {
		out.Enum = append(out.Enum, nil)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*jsonschema.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = prop.JSONSchema()
		}
	}
	if s.Items != nil {
		out.Items = s.Items.JSONSchema()
	}
	if s.MinItems > 0 {
		out.MinItems = jsonschema.Ptr(s.MinItems)
	}
	return out
}

func (s *Schema) name() string {
	if s == nil || s.Name == "" {
		return "structured"
	}
	return s.Name
}

// splitValidationError peels the nested "validating <location>: " prefixes
// off a jsonschema error and returns the innermost location and the reason.
func splitValidationError(msg string) (string, string) {
	location := "root"
	for strings.HasPrefix(msg, "validating ") {
		rest := strings.TrimPrefix(msg, "validating ")
		i := strings.Index(rest, ": ")
		if i < 0 {
			break
		}
		location, msg = rest[:i], rest[i+2:]
	}
	return location, msg
}

// instancePath turns a schema location such as /properties/tags/items into $.tags[*].
func instancePath(location string) string {
	path := "$"
	segments := strings.Split(strings.Trim(location, "/"), "/")
	for i := 0; i < len(segments); i++ {
		switch segments[i] {
		case "properties":
			if i+1 < len(segments) {
				path += "." + segments[i+1]
				i++
			}
		case "items":
			path += "[*]"
		}
	}
	return path
}
