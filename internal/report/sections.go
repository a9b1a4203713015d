package report

import "strings"

const sectionSeparator = "---"

// Section titles as they appear after "### " in a detailed_report.
const (
	TitleInvestmentSummary  = "Investment Summary & ROI"
	TitleMarketSize         = "Market Size & Density"
	TitleDemographicProfile = "Demographic Profile"
	TitleProjectedDemand    = "Projected Demand & Remote Work"
	TitleDeployment         = "Deployment Complexity"
	TitleLaborCosts         = "Labor & Resource Costs"
	TitleIncumbentAnalysis  = "Incumbent Provider Analysis"
	TitleCompetitivePricing = "Competitive Pricing"
	TitlePermitting         = "Permitting & Regulation"
	TitleESGImpact          = "ESG Impact Score"
)

// Sections is a detailed_report split on its horizontal-rule separators.
type Sections []string

func SplitSections(markdown string) Sections {
	return Sections(strings.Split(markdown, sectionSeparator))
}

// Get returns the body of the first section containing "### <title>": the
// text after the heading line, trimmed. Missing sections yield NotAvailable.
func (s Sections) Get(title string) string {
	heading := "### " + title
	for _, section := range s {
		idx := strings.Index(section, heading)
		if idx < 0 {
			continue
		}
		rest := section[idx+len(heading):]
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return ""
		}
		return strings.TrimSpace(rest[nl+1:])
	}
	return NotAvailable
}

func (s Sections) apply(r *Region) {
	r.Details = s.Get(TitleInvestmentSummary)
	r.MarketSizeAndDensity = s.Get(TitleMarketSize)
	r.DemographicProfile = s.Get(TitleDemographicProfile)
	r.ProjectedDemand = s.Get(TitleProjectedDemand)
	r.DeploymentComplexity = s.Get(TitleDeployment)
	r.LaborAndResourceCosts = s.Get(TitleLaborCosts)
	r.IncumbentAnalysis = s.Get(TitleIncumbentAnalysis)
	r.CompetitivePricing = s.Get(TitleCompetitivePricing)
	r.PermittingAndRegulation = s.Get(TitlePermitting)
	r.ESGImpactScore = s.Get(TitleESGImpact)
}
