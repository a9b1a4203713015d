package report

// NotAvailable is the placeholder used when a narrative section is absent
// from an opportunity's detailed_report.
const NotAvailable = "Not available"

// DefaultTimeline is shown for every region until reports carry their own.
const DefaultTimeline = "24 Months"

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type MapView struct {
	Center LatLng  `json:"center"`
	Zoom   float64 `json:"zoom"`
}

// ViewLookup resolves the initial map view for a city key.
type ViewLookup interface {
	View(cityKey string) MapView
}

// Region is one joined, UI-ready investment area.
type Region struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Coordinates        LatLng   `json:"coordinates"`
	PolygonCoordinates []LatLng `json:"polygonCoordinates"`
	ROIPercentage      float64  `json:"roiPercentage"`
	ProjectedRevenue   string   `json:"projectedRevenue"`
	ProjectedCost      float64  `json:"projectedCost"`
	NetProfit          float64  `json:"netProfit"`
	Timeline           string   `json:"timeline"`
	ExecutiveSummary   string   `json:"executiveSummary"`
	Details            string   `json:"details"`

	MarketSizeAndDensity    string `json:"marketSizeAndDensity"`
	DemographicProfile      string `json:"demographicProfile"`
	ProjectedDemand         string `json:"projectedDemand"`
	DeploymentComplexity    string `json:"deploymentComplexity"`
	LaborAndResourceCosts   string `json:"laborAndResourceCosts"`
	IncumbentAnalysis       string `json:"incumbentAnalysis"`
	CompetitivePricing      string `json:"competitivePricing"`
	PermittingAndRegulation string `json:"permittingAndRegulation"`
	ESGImpactScore          string `json:"esgImpactScore"`

	DetailedReport        string `json:"detailed_report"`
	DeepResearchReportURL string `json:"deepResearchReportUrl"`
}

// Report is the assembled view for one city, serialised as-is to clients.
type Report struct {
	City             string   `json:"city"`
	MapCenter        LatLng   `json:"mapCenter"`
	MapZoom          float64  `json:"mapZoom"`
	ExecutiveSummary string   `json:"executive_summary"`
	Regions          []Region `json:"regions"`
}

// FindRegion returns the region with the given id, matched case-insensitively.
func (r *Report) FindRegion(id string) (*Region, bool) {
	want := lower(id)
	for i := range r.Regions {
		if lower(r.Regions[i].ID) == want {
			return &r.Regions[i], true
		}
	}
	return nil, false
}

type WarningKind string

const (
	WarnMissingIdentifier    WarningKind = "missing_identifier"
	WarnUnmatchedFeature     WarningKind = "unmatched_feature"
	WarnInvalidGeometryJSON  WarningKind = "invalid_geometry_json"
	WarnMissingCoordinates   WarningKind = "missing_coordinates"
	WarnMalformedPolygon     WarningKind = "malformed_polygon"
	WarnUnsupportedGeometry  WarningKind = "unsupported_geometry"
	WarnInvalidCoordinates   WarningKind = "invalid_coordinates"
	WarnEmptyPolygon         WarningKind = "empty_polygon"
	WarnMalformedOpportunity WarningKind = "malformed_opportunity"
)

type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityWarn Severity = "warn"
)

// Warning records why a feature or opportunity was dropped. FeatureIndex is -1
// for warnings about report entries rather than geometry features.
type Warning struct {
	FeatureIndex int         `json:"featureIndex"`
	RegionID     string      `json:"regionId,omitempty"`
	Kind         WarningKind `json:"kind"`
	Severity     Severity    `json:"severity"`
	Message      string      `json:"message"`
}

// Result carries the assembled report together with every recovered problem.
type Result struct {
	Report   *Report   `json:"report"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// ParsingWarnings returns warnings of severity warn, excluding unmatched features.
func (r *Result) ParsingWarnings() []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Severity == SeverityWarn {
			out = append(out, w)
		}
	}
	return out
}
