package gemini

import (
	"strings"

	"google.golang.org/genai"

	"github.com/marcus302/aanvraagapp/internal/ai"
)

// toGenaiSchema converts a provider-neutral schema into the Gemini response schema.
func toGenaiSchema(s *ai.Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(string(s.Type))),
		Description: s.Description,
		Format:      s.Format,
		Required:    s.Required,
	}
	if len(s.Enum) > 0 {
		out.Enum = append([]string(nil), s.Enum...)
		if s.Type == ai.TypeString {
			out.Format = "enum"
		}
	}
	if s.Nullable {
		out.Nullable = genai.Ptr(true)
	}
	if s.MinItems > 0 {
		out.MinItems = genai.Ptr(int64(s.MinItems))
	}
	if s.Items != nil {
		out.Items = toGenaiSchema(s.Items)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
		out.PropertyOrdering = s.Order
	}

	return out
}
