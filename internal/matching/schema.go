package matching

import "github.com/marcus302/aanvraagapp/internal/ai"

// ConditionEval is the verdict on one eligibility requirement.
type ConditionEval string

const (
	ConditionPasses      ConditionEval = "PASSES"
	ConditionUnclear     ConditionEval = "UNCLEAR"
	ConditionFails       ConditionEval = "FAILS"
	ConditionOpportunity ConditionEval = "OPPORTUNITY"
)

// Quality is the overall verdict on a client/listing pair, worst first.
type Quality string

const (
	QualityBad         Quality = "BAD"
	QualityUnclear     Quality = "UNCLEAR"
	QualityInteresting Quality = "INTERESTING"
	QualityVeryGood    Quality = "VERY_GOOD"
)

var qualityRank = map[Quality]int{
	QualityBad:         0,
	QualityUnclear:     1,
	QualityInteresting: 2,
	QualityVeryGood:    3,
}

// AtLeast reports whether q is as good as or better than min.
func (q Quality) AtLeast(min Quality) bool {
	return qualityRank[q] >= qualityRank[min]
}

// ParseQuality accepts the exact enum value.
func ParseQuality(s string) (Quality, bool) {
	q := Quality(s)
	_, ok := qualityRank[q]
	return q, ok
}

var matchSchema = &ai.Schema{
	Name: "match_result",
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"listing_ambiguous": {
			Type:        ai.TypeBoolean,
			Description: "True when the listing bundles several distinct programmes",
		},
		"conditions": {
			Type: ai.TypeArray,
			Items: &ai.Schema{
				Type: ai.TypeObject,
				Properties: map[string]*ai.Schema{
					"condition_desc": {Type: ai.TypeString},
					"condition_eval": {
						Type: ai.TypeString,
						Enum: []string{
							string(ConditionPasses), string(ConditionUnclear),
							string(ConditionFails), string(ConditionOpportunity),
						},
					},
					"reasoning": {Type: ai.TypeString},
				},
				Required: []string{"condition_desc", "condition_eval", "reasoning"},
				Order:    []string{"condition_desc", "condition_eval", "reasoning"},
			},
		},
		"match_quality": {
			Type: ai.TypeString,
			Enum: []string{
				string(QualityBad), string(QualityUnclear),
				string(QualityInteresting), string(QualityVeryGood),
			},
		},
	},
	Required: []string{"listing_ambiguous", "conditions", "match_quality"},
	Order:    []string{"listing_ambiguous", "conditions", "match_quality"},
}
