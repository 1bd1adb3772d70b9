package extract

import "strings"

// TargetAudience classifies who a listing is for, or what kind of
// organisation a client is.
type TargetAudience string

const (
	AudienceSME                  TargetAudience = "SME"
	AudienceAgriculture          TargetAudience = "AGRICULTURE"
	AudienceFinancialInstitution TargetAudience = "FINANCIAL_INSTITUTION"
	AudienceLargeCompany         TargetAudience = "LARGE_COMPANY"
	AudienceNGOOrNonProfit       TargetAudience = "NGO_OR_NON_PROFIT"
	AudiencePublicSector         TargetAudience = "PUBLIC_SECTOR"
	AudiencePrivateIndividuals   TargetAudience = "PRIVATE_INDIVIDUALS"
	AudienceSchool               TargetAudience = "SCHOOL_OR_EDUCATIONAL_INSTITUTION"
	AudienceOther                TargetAudience = "OTHER"
)

var TargetAudiences = []TargetAudience{
	AudienceSME,
	AudienceAgriculture,
	AudienceFinancialInstitution,
	AudienceLargeCompany,
	AudienceNGOOrNonProfit,
	AudiencePublicSector,
	AudiencePrivateIndividuals,
	AudienceSchool,
	AudienceOther,
}

var targetAudienceDocs = map[TargetAudience]string{
	AudienceSME:                  `Small and Medium Enterprises. In Dutch called "MKB".`,
	AudienceFinancialInstitution: "Banks, credit unions, and other financial entities.",
	AudienceLargeCompany:         `Large corporations and enterprises. In Dutch called "Midden/Groot bedrijf".`,
	AudienceOther:                "Choose this if no other option applies.",
}

// FinancialInstrument is the form in which a listing pays out.
type FinancialInstrument string

const (
	InstrumentSubsidy       FinancialInstrument = "SUBSIDY"
	InstrumentLoan          FinancialInstrument = "LOAN"
	InstrumentLoanGuarantee FinancialInstrument = "LOAN_GUARANTEE"
	InstrumentOther         FinancialInstrument = "OTHER"
)

var FinancialInstruments = []FinancialInstrument{
	InstrumentSubsidy,
	InstrumentLoan,
	InstrumentLoanGuarantee,
	InstrumentOther,
}

var financialInstrumentDocs = map[FinancialInstrument]string{
	InstrumentOther: "Choose this if no other option applies.",
}

// ParseFinancialInstrument matches s case-insensitively against the known instruments.
func ParseFinancialInstrument(s string) (FinancialInstrument, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, fi := range FinancialInstruments {
		if string(fi) == s {
			return fi, true
		}
	}
	return "", false
}

// ParseTargetAudience matches s case-insensitively against the known audiences.
func ParseTargetAudience(s string) (TargetAudience, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, ta := range TargetAudiences {
		if string(ta) == s {
			return ta, true
		}
	}
	return "", false
}

func audienceNames() []string {
	names := make([]string, len(TargetAudiences))
	for i, ta := range TargetAudiences {
		names[i] = string(ta)
	}
	return names
}

func instrumentNames() []string {
	names := make([]string, len(FinancialInstruments))
	for i, fi := range FinancialInstruments {
		names[i] = string(fi)
	}
	return names
}

func audienceDocumentation() string {
	var b strings.Builder
	for _, ta := range TargetAudiences {
		b.WriteString("- ")
		b.WriteString(string(ta))
		if doc, ok := targetAudienceDocs[ta]; ok {
			b.WriteString(": ")
			b.WriteString(doc)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func instrumentDocumentation() string {
	var b strings.Builder
	for _, fi := range FinancialInstruments {
		b.WriteString("- ")
		b.WriteString(string(fi))
		if doc, ok := financialInstrumentDocs[fi]; ok {
			b.WriteString(": ")
			b.WriteString(doc)
		}
		b.WriteString("\n")
	}
	return b.String()
}
