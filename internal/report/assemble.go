// Package report joins a city's GeoJSON polygons with its analyst opportunity
// report into the region list shown on the map.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// FallbackView is used for cities without a configured map view.
var FallbackView = MapView{Center: LatLng{Lat: 52.5200, Lng: 13.4050}, Zoom: 10}

// Observer is notified once per Assemble call.
type Observer interface {
	ObserveAssembly(cityKey string, res *Result, err error)
}

type Assembler struct {
	views    ViewLookup
	log      zerolog.Logger
	observer Observer
}

// NewAssembler builds an Assembler. views and observer may be nil.
func NewAssembler(views ViewLookup, log zerolog.Logger, observer Observer) *Assembler {
	return &Assembler{
		views:    views,
		log:      log.With().Str("component", "report_assembler").Logger(),
		observer: observer,
	}
}

type opportunity struct {
	SubAreaName    string
	Financials     Financials
	DetailedReport string
}

type rawOpportunity struct {
	SubAreaName    json.RawMessage `json:"sub_area_name"`
	Financials     json.RawMessage `json:"financials"`
	DetailedReport json.RawMessage `json:"detailed_report"`
}

type rawFeature struct {
	Properties json.RawMessage `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// Assemble joins geometryDoc and reportDoc for one city. cityLabel is copied to
// the output and used in messages; cityKey selects the map view.
func (a *Assembler) Assemble(geometryDoc, reportDoc []byte, cityLabel, cityKey string) (*Result, error) {
	res, err := a.assemble(geometryDoc, reportDoc, cityLabel, cityKey)
	if a.observer != nil {
		a.observer.ObserveAssembly(cityKey, res, err)
	}
	return res, err
}

func (a *Assembler) assemble(geometryDoc, reportDoc []byte, cityLabel, cityKey string) (*Result, error) {
	res := &Result{}

	summary, opportunities, err := a.parseReport(reportDoc, cityLabel, res)
	if err != nil {
		return nil, err
	}
	features, err := parseFeatures(geometryDoc, cityLabel)
	if err != nil {
		return nil, err
	}

	regions := make([]Region, 0, len(features))
	for i, raw := range features {
		region, ok := a.joinFeature(i, raw, opportunities, res)
		if !ok {
			continue
		}
		region.ExecutiveSummary = summary
		regions = append(regions, region)
	}

	if parsing := res.ParsingWarnings(); len(parsing) > 0 {
		for _, w := range parsing {
			a.log.Warn().
				Str("city", cityKey).
				Int("feature_index", w.FeatureIndex).
				Str("kind", string(w.Kind)).
				Msg(w.Message)
		}
		a.log.Warn().Str("city", cityKey).Int("count", len(parsing)).Msg("some regions could not be parsed")
	}

	if len(features) > 0 && len(regions) == 0 {
		return nil, errNoRegions(cityLabel)
	}

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].ROIPercentage > regions[j].ROIPercentage
	})

	view := a.view(cityKey)
	res.Report = &Report{
		City:             cityLabel,
		MapCenter:        view.Center,
		MapZoom:          view.Zoom,
		ExecutiveSummary: summary,
		Regions:          regions,
	}
	return res, nil
}

func (a *Assembler) view(cityKey string) MapView {
	if a.views == nil {
		return FallbackView
	}
	return a.views.View(cityKey)
}

func (a *Assembler) parseReport(doc []byte, cityLabel string, res *Result) (string, []opportunity, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil || top == nil {
		return "", nil, errMalformedReport(cityLabel)
	}
	ranked, ok := top["ranked_opportunities"]
	if !ok || !isJSONArray(ranked) {
		return "", nil, errMalformedReport(cityLabel)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(ranked, &entries); err != nil {
		return "", nil, errMalformedReport(cityLabel)
	}

	var summary string
	_ = json.Unmarshal(top["executive_summary"], &summary)

	out := make([]opportunity, 0, len(entries))
	for i, entry := range entries {
		var raw rawOpportunity
		var name string
		if json.Unmarshal(entry, &raw) != nil || json.Unmarshal(raw.SubAreaName, &name) != nil || strings.TrimSpace(name) == "" {
			res.Warnings = append(res.Warnings, Warning{
				FeatureIndex: -1,
				Kind:         WarnMalformedOpportunity,
				Severity:     SeverityWarn,
				Message:      fmt.Sprintf("Opportunity at index %d has no usable 'sub_area_name' and cannot be matched.", i),
			})
			continue
		}
		opp := opportunity{SubAreaName: name}
		if len(raw.Financials) > 0 {
			_ = json.Unmarshal(raw.Financials, &opp.Financials)
		}
		if len(raw.DetailedReport) > 0 {
			_ = json.Unmarshal(raw.DetailedReport, &opp.DetailedReport)
		}
		out = append(out, opp)
	}
	return summary, out, nil
}

func parseFeatures(doc []byte, cityLabel string) ([]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil || top == nil {
		return nil, errMalformedGeometry(cityLabel)
	}
	var typ string
	_ = json.Unmarshal(top["type"], &typ)
	featuresRaw, hasFeatures := top["features"]
	hasFeatures = hasFeatures && isJSONArray(featuresRaw)

	switch {
	case typ == "FeatureCollection" && hasFeatures:
	case typ == "Feature":
		return []json.RawMessage{json.RawMessage(doc)}, nil
	case hasFeatures:
	default:
		return nil, errMalformedGeometry(cityLabel)
	}

	var features []json.RawMessage
	if err := json.Unmarshal(featuresRaw, &features); err != nil {
		return nil, errMalformedGeometry(cityLabel)
	}
	return features, nil
}

func (a *Assembler) joinFeature(index int, raw json.RawMessage, opportunities []opportunity, res *Result) (Region, bool) {
	var f rawFeature
	_ = json.Unmarshal(raw, &f)

	regionID := resolveIdentifier(f.Properties)
	if regionID == "" {
		res.Warnings = append(res.Warnings, Warning{
			FeatureIndex: index,
			Kind:         WarnMissingIdentifier,
			Severity:     SeverityWarn,
			Message:      fmt.Sprintf("Polygon at index %d is missing a usable identifier in its properties (checked for 'id', 'name', 'sub_area_name').", index),
		})
		return Region{}, false
	}

	opp, ok := matchOpportunity(regionID, opportunities)
	if !ok {
		a.log.Info().Str("region_id", regionID).Msg("no report found for region; polygon will not be displayed")
		res.Warnings = append(res.Warnings, Warning{
			FeatureIndex: index,
			RegionID:     regionID,
			Kind:         WarnUnmatchedFeature,
			Severity:     SeverityInfo,
			Message:      fmt.Sprintf("No report found for region ID: '%s'.", regionID),
		})
		return Region{}, false
	}

	polygon, ferr := outerRing(regionID, f.Geometry)
	if ferr != nil {
		res.Warnings = append(res.Warnings, Warning{
			FeatureIndex: index,
			RegionID:     regionID,
			Kind:         ferr.kind,
			Severity:     SeverityWarn,
			Message:      ferr.msg,
		})
		return Region{}, false
	}

	fin := opp.Financials
	region := Region{
		ID:                 regionID,
		Name:               opp.SubAreaName,
		Coordinates:        Centroid(polygon),
		PolygonCoordinates: polygon,
		ROIPercentage:      float64(fin.EstimatedROIPercentage),
		ProjectedRevenue:   FormatCurrency(float64(fin.TotalProjectedRevenueUSD)),
		ProjectedCost:      float64(fin.TotalProjectedCostUSD),
		NetProfit:          float64(fin.NetProfit),
		Timeline:           DefaultTimeline,
		DetailedReport:     opp.DetailedReport,
	}
	SplitSections(opp.DetailedReport).apply(&region)
	return region, true
}

// resolveIdentifier picks properties.id, then name, then sub_area_name.
func resolveIdentifier(props json.RawMessage) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(props, &m); err != nil {
		return ""
	}
	for _, key := range []string{"id", "name", "sub_area_name"} {
		if v := identifierValue(m[key]); v != "" {
			return v
		}
	}
	return ""
}

func identifierValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil && n.String() != "0" {
		return n.String()
	}
	return ""
}

func matchOpportunity(regionID string, opportunities []opportunity) (opportunity, bool) {
	want := lower(regionID)
	for _, o := range opportunities {
		if lower(o.SubAreaName) == want {
			return o, true
		}
	}
	return opportunity{}, false
}

func lower(s string) string { return strings.ToLower(s) }
