package extract

import "github.com/marcus302/aanvraagapp/internal/ai"

// ListingSchema constrains the structured fields extracted from a listing page.
var ListingSchema = &ai.Schema{
	Name: "listing_fields",
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"is_open": {
			Type:        ai.TypeBoolean,
			Nullable:    true,
			Description: "Whether the subsidy application is currently open for submissions",
		},
		"opens_at": {
			Type:        ai.TypeString,
			Format:      ai.FormatDate,
			Nullable:    true,
			Description: "The date when applications open",
		},
		"closes_at": {
			Type:        ai.TypeString,
			Format:      ai.FormatDate,
			Nullable:    true,
			Description: "The deadline date for applications",
		},
		"last_checked": {
			Type:        ai.TypeString,
			Format:      ai.FormatDate,
			Nullable:    true,
			Description: "The date when this information was last verified",
		},
		"name": {
			Type:        ai.TypeString,
			Description: "The name of the subsidy",
		},
		"target_audiences": {
			Type:     ai.TypeArray,
			MinItems: 1,
			Items: &ai.Schema{
				Type: ai.TypeString,
				Enum: audienceNames(),
			},
			Description: "Every kind of organisation that can apply",
		},
		"financial_instrument": {
			Type: ai.TypeString,
			Enum: instrumentNames(),
		},
		"target_audience_desc": {
			Type:        ai.TypeString,
			Description: "A high quality description of who can apply for this subsidy",
		},
	},
	Required: []string{
		"is_open", "opens_at", "closes_at", "last_checked",
		"name", "target_audiences", "financial_instrument", "target_audience_desc",
	},
	Order: []string{
		"is_open", "opens_at", "closes_at", "last_checked",
		"name", "target_audiences", "financial_instrument", "target_audience_desc",
	},
}

// ClientSchema constrains the structured fields extracted from a client website.
var ClientSchema = &ai.Schema{
	Name: "client_fields",
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"business_identity": {
			Type:        ai.TypeString,
			Enum:        audienceNames(),
			Description: "The category that best describes this client's organization type",
		},
		"audience_desc": {
			Type:        ai.TypeString,
			Description: "A high quality description of the client's business, activities, and characteristics in a couple of sentences",
		},
	},
	Required: []string{"business_identity", "audience_desc"},
	Order:    []string{"business_identity", "audience_desc"},
}
