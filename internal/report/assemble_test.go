package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticViews map[string]MapView

func (v staticViews) View(cityKey string) MapView {
	if mv, ok := v[cityKey]; ok {
		return mv
	}
	return FallbackView
}

type recordingObserver struct {
	calls int
	err   error
}

func (o *recordingObserver) ObserveAssembly(_ string, _ *Result, err error) {
	o.calls++
	o.err = err
}

func newTestAssembler() *Assembler {
	return NewAssembler(staticViews{
		"milan": {Center: LatLng{Lat: 45.4642, Lng: 9.19}, Zoom: 11},
	}, zerolog.Nop(), nil)
}

func polygonFeature(id string, ring [][2]float64) map[string]any {
	coords := make([][]float64, 0, len(ring))
	for _, p := range ring {
		coords = append(coords, []float64{p[0], p[1]})
	}
	return map[string]any{
		"type":       "Feature",
		"properties": map[string]any{"id": id},
		"geometry":   map[string]any{"type": "Polygon", "coordinates": [][][]float64{coords}},
	}
}

func collection(features ...map[string]any) []byte {
	fs := make([]any, 0, len(features))
	for _, f := range features {
		fs = append(fs, f)
	}
	b, _ := json.Marshal(map[string]any{"type": "FeatureCollection", "features": fs})
	return b
}

func opp(name string, roi float64, report string) map[string]any {
	return map[string]any{
		"sub_area_name": name,
		"financials": map[string]any{
			"estimated_roi_percentage":    roi,
			"total_projected_revenue_usd": 1250000,
			"total_projected_cost_usd":    800000,
			"net_profit":                  450000,
		},
		"detailed_report": report,
	}
}

func reportDoc(opps ...map[string]any) []byte {
	list := make([]any, 0, len(opps))
	for _, o := range opps {
		list = append(list, o)
	}
	b, _ := json.Marshal(map[string]any{
		"executive_summary":    "City-wide fibre rollout outlook.",
		"ranked_opportunities": list,
	})
	return b
}

var square = [][2]float64{{0, 0}, {0, 2}, {2, 2}, {2, 0}}

func TestAssemblePolygonSwapsCoordinates(t *testing.T) {
	a := newTestAssembler()
	ring := [][2]float64{{13.40, 52.51}, {13.41, 52.52}, {13.42, 52.51}}
	res, err := a.Assemble(collection(polygonFeature("Mitte", ring)), reportDoc(opp("mitte", 12, "")), "Berlin", "berlin")
	require.NoError(t, err)
	require.Len(t, res.Report.Regions, 1)

	r := res.Report.Regions[0]
	assert.Equal(t, "Mitte", r.ID)
	assert.Equal(t, "mitte", r.Name)
	assert.Equal(t, LatLng{Lat: 52.51, Lng: 13.40}, r.PolygonCoordinates[0])
	assert.Len(t, r.PolygonCoordinates, 3)
}

func TestAssembleMultiPolygonUsesFirstRingOfFirstPolygon(t *testing.T) {
	a := newTestAssembler()
	feature := map[string]any{
		"type":       "Feature",
		"properties": map[string]any{"name": "Navigli"},
		"geometry": map[string]any{
			"type": "MultiPolygon",
			"coordinates": [][][][]float64{
				{{{9.17, 45.45}, {9.18, 45.46}, {9.19, 45.45}}, {{9.175, 45.452}, {9.176, 45.453}, {9.177, 45.452}}},
				{{{1, 1}, {2, 2}, {3, 1}}},
			},
		},
	}
	res, err := a.Assemble(collection(feature), reportDoc(opp("NAVIGLI", 9, "")), "Milan", "milan")
	require.NoError(t, err)
	require.Len(t, res.Report.Regions, 1)

	r := res.Report.Regions[0]
	assert.Equal(t, LatLng{Lat: 45.45, Lng: 9.17}, r.PolygonCoordinates[0])
	assert.Len(t, r.PolygonCoordinates, 3)
	assert.Equal(t, LatLng{Lat: 45.4642, Lng: 9.19}, res.Report.MapCenter)
	assert.Equal(t, 11.0, res.Report.MapZoom)
}

func TestCentroidOfSquare(t *testing.T) {
	got := Centroid([]LatLng{{0, 0}, {0, 2}, {2, 2}, {2, 0}})
	assert.InDelta(t, 1, got.Lat, 1e-12)
	assert.InDelta(t, 1, got.Lng, 1e-12)
	assert.Equal(t, LatLng{}, Centroid(nil))
}

func TestAssembleExtremeCoordinatesKeepFiniteCentroid(t *testing.T) {
	a := newTestAssembler()
	ring := [][2]float64{{1.5e308, 1.5e308}, {1.5e308, 1.5e308}, {-1.5e308, 1.5e308}}
	res, err := a.Assemble(collection(polygonFeature("Mitte", ring)), reportDoc(opp("mitte", 4, "")), "Berlin", "berlin")
	require.NoError(t, err)
	require.Len(t, res.Report.Regions, 1)

	c := res.Report.Regions[0].Coordinates
	assert.False(t, math.IsInf(c.Lat, 0) || math.IsNaN(c.Lat))
	assert.False(t, math.IsInf(c.Lng, 0) || math.IsNaN(c.Lng))
	assert.InDelta(t, 1.5e308, c.Lat, 1e295)

	_, err = json.Marshal(res.Report)
	assert.NoError(t, err)
}

func TestAssembleCentroidRoundTrip(t *testing.T) {
	a := newTestAssembler()
	ring := [][2]float64{{9.1, 45.4}, {9.25, 45.41}, {9.3, 45.5}, {9.12, 45.52}, {9.05, 45.47}}
	res, err := a.Assemble(collection(polygonFeature("duomo", ring)), reportDoc(opp("Duomo", 3, "")), "Milan", "milan")
	require.NoError(t, err)
	r := res.Report.Regions[0]

	inverse := make([][2]float64, 0, len(r.PolygonCoordinates))
	for _, p := range r.PolygonCoordinates {
		inverse = append(inverse, [2]float64{p.Lng, p.Lat})
	}
	again, err := a.Assemble(collection(polygonFeature("duomo", inverse)), reportDoc(opp("Duomo", 3, "")), "Milan", "milan")
	require.NoError(t, err)
	c := again.Report.Regions[0].Coordinates
	assert.InDelta(t, r.Coordinates.Lat, c.Lat, 1e-12)
	assert.InDelta(t, r.Coordinates.Lng, c.Lng, 1e-12)
}

func TestAssembleIdentifierPriority(t *testing.T) {
	a := newTestAssembler()
	feature := map[string]any{
		"properties": map[string]any{"id": "", "name": "Kreuzberg", "sub_area_name": "Neukoelln"},
		"geometry":   map[string]any{"type": "Polygon", "coordinates": [][][]float64{{{0, 0}, {1, 1}, {1, 0}}}},
	}
	res, err := a.Assemble(collection(feature), reportDoc(opp("kreuzberg", 5, ""), opp("neukoelln", 6, "")), "Berlin", "berlin")
	require.NoError(t, err)
	require.Len(t, res.Report.Regions, 1)
	assert.Equal(t, "Kreuzberg", res.Report.Regions[0].ID)
}

func TestAssembleDropsFeatureWithoutIdentifier(t *testing.T) {
	a := newTestAssembler()
	anonymous := map[string]any{
		"properties": map[string]any{"population": 1200},
		"geometry":   map[string]any{"type": "Polygon", "coordinates": [][][]float64{{{0, 0}, {1, 1}, {1, 0}}}},
	}
	res, err := a.Assemble(collection(anonymous, polygonFeature("Mitte", square)), reportDoc(opp("Mitte", 1, "")), "Berlin", "berlin")
	require.NoError(t, err)
	require.Len(t, res.Report.Regions, 1)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnMissingIdentifier, res.Warnings[0].Kind)
	assert.Equal(t, 0, res.Warnings[0].FeatureIndex)
	assert.Equal(t, SeverityWarn, res.Warnings[0].Severity)
}

func TestAssembleSkipsUnmatchedFeature(t *testing.T) {
	a := newTestAssembler()
	res, err := a.Assemble(collection(polygonFeature("Pankow", square), polygonFeature("Mitte", square)),
		reportDoc(opp("Mitte", 1, "")), "Berlin", "berlin")
	require.NoError(t, err)
	require.Len(t, res.Report.Regions, 1)
	assert.Equal(t, "Mitte", res.Report.Regions[0].ID)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnUnmatchedFeature, res.Warnings[0].Kind)
	assert.Equal(t, SeverityInfo, res.Warnings[0].Severity)
	assert.Empty(t, res.ParsingWarnings())
}

func TestAssembleStringEncodedGeometry(t *testing.T) {
	a := newTestAssembler()
	geom, _ := json.Marshal(map[string]any{"type": "Polygon", "coordinates": [][][]float64{{{13.1, 52.1}, {13.2, 52.2}, {13.3, 52.1}}}})
	feature := map[string]any{"properties": map[string]any{"id": "wedding"}, "geometry": string(geom)}
	broken := map[string]any{"properties": map[string]any{"id": "moabit"}, "geometry": "{not json"}

	res, err := a.Assemble(collection(feature, broken), reportDoc(opp("Wedding", 4, ""), opp("Moabit", 4, "")), "Berlin", "berlin")
	require.NoError(t, err)
	require.Len(t, res.Report.Regions, 1)
	assert.Equal(t, LatLng{Lat: 52.1, Lng: 13.1}, res.Report.Regions[0].PolygonCoordinates[0])

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnInvalidGeometryJSON, res.Warnings[0].Kind)
	assert.Equal(t, "moabit", res.Warnings[0].RegionID)
}

func TestAssembleGeometryFailures(t *testing.T) {
	cases := []struct {
		name     string
		geometry any
		want     WarningKind
	}{
		{"missing geometry", nil, WarnMissingCoordinates},
		{"coordinates not array", map[string]any{"type": "Polygon", "coordinates": "x"}, WarnMissingCoordinates},
		{"unsupported type", map[string]any{"type": "LineString", "coordinates": [][]float64{{0, 0}, {1, 1}}}, WarnUnsupportedGeometry},
		{"polygon without ring", map[string]any{"type": "Polygon", "coordinates": []any{}}, WarnMalformedPolygon},
		{"multipolygon without ring", map[string]any{"type": "MultiPolygon", "coordinates": []any{[]any{}}}, WarnMalformedPolygon},
		{"non numeric", map[string]any{"type": "Polygon", "coordinates": []any{[]any{[]any{"13.1", 52.1}}}}, WarnInvalidCoordinates},
		{"short pair", map[string]any{"type": "Polygon", "coordinates": []any{[]any{[]any{13.1}}}}, WarnInvalidCoordinates},
		{"null member", map[string]any{"type": "Polygon", "coordinates": []any{[]any{[]any{13.1, nil}}}}, WarnInvalidCoordinates},
		{"empty ring", map[string]any{"type": "Polygon", "coordinates": []any{[]any{}}}, WarnEmptyPolygon},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAssembler()
			bad := map[string]any{"properties": map[string]any{"id": "bad"}, "geometry": tc.geometry}
			res, err := a.Assemble(collection(bad, polygonFeature("good", square)), reportDoc(opp("bad", 1, ""), opp("good", 1, "")), "Berlin", "berlin")
			require.NoError(t, err)
			require.Len(t, res.Report.Regions, 1)
			require.Len(t, res.Warnings, 1)
			assert.Equal(t, tc.want, res.Warnings[0].Kind)
		})
	}
}

func TestAssembleSectionsExtraction(t *testing.T) {
	a := newTestAssembler()
	md := "### Market Size & Density\nFoo\n---\n### ESG Impact Score\nBar"
	res, err := a.Assemble(collection(polygonFeature("Mitte", square)), reportDoc(opp("Mitte", 1, md)), "Berlin", "berlin")
	require.NoError(t, err)
	r := res.Report.Regions[0]
	assert.Equal(t, "Foo", r.MarketSizeAndDensity)
	assert.Equal(t, "Bar", r.ESGImpactScore)
	assert.Equal(t, NotAvailable, r.DemographicProfile)
	assert.Equal(t, NotAvailable, r.Details)
	assert.Equal(t, md, r.DetailedReport)
}

func TestSectionsGetTakesTextAfterHeadingLine(t *testing.T) {
	md := "## Overview\n---\n\n### Investment Summary & ROI\nStrong returns.\nLow risk.\n\n---\n### Competitive Pricing\n"
	s := SplitSections(md)
	assert.Equal(t, "Strong returns.\nLow risk.", s.Get(TitleInvestmentSummary))
	assert.Equal(t, "", s.Get(TitleCompetitivePricing))
	assert.Equal(t, NotAvailable, s.Get(TitlePermitting))
}

func TestAssembleSortsByROIDescendingStable(t *testing.T) {
	a := newTestAssembler()
	geo := collection(
		polygonFeature("a", square),
		polygonFeature("b", square),
		polygonFeature("c", square),
		polygonFeature("d", square),
	)
	rep := reportDoc(opp("a", 5, ""), opp("b", 9, ""), opp("c", 5, ""), opp("d", 7, ""))
	res, err := a.Assemble(geo, rep, "Berlin", "berlin")
	require.NoError(t, err)

	var ids []string
	for _, r := range res.Report.Regions {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
}

func TestAssembleMalformedReport(t *testing.T) {
	a := newTestAssembler()
	for _, doc := range []string{`{}`, `{"ranked_opportunities": {"a": 1}}`, `[]`, `null`, `not json`} {
		_, err := a.Assemble(collection(polygonFeature("a", square)), []byte(doc), "Berlin", "berlin")
		require.Error(t, err, doc)
		var rerr *Error
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, CodeMalformedReport, rerr.Code)
		assert.Contains(t, err.Error(), "Berlin")
		assert.Contains(t, err.Error(), "ranked_opportunities")
	}
}

func TestAssembleMalformedGeometry(t *testing.T) {
	a := newTestAssembler()
	for _, doc := range []string{`{"type": "Point"}`, `{"features": {}}`, `[1,2]`} {
		_, err := a.Assemble([]byte(doc), reportDoc(opp("a", 1, "")), "Milan", "milan")
		var rerr *Error
		require.True(t, errors.As(err, &rerr), doc)
		assert.Equal(t, CodeMalformedGeometry, rerr.Code)
		assert.Contains(t, err.Error(), "Milan")
	}
}

func TestAssembleSingleFeatureAndBareFeatureList(t *testing.T) {
	a := newTestAssembler()
	single, _ := json.Marshal(polygonFeature("Mitte", square))
	res, err := a.Assemble(single, reportDoc(opp("Mitte", 1, "")), "Berlin", "berlin")
	require.NoError(t, err)
	assert.Len(t, res.Report.Regions, 1)

	bare, _ := json.Marshal(map[string]any{"features": []any{polygonFeature("Mitte", square)}})
	res, err = a.Assemble(bare, reportDoc(opp("Mitte", 1, "")), "Berlin", "berlin")
	require.NoError(t, err)
	assert.Len(t, res.Report.Regions, 1)
}

func TestAssembleNoRegionsFailsHard(t *testing.T) {
	obs := &recordingObserver{}
	a := NewAssembler(nil, zerolog.Nop(), obs)
	_, err := a.Assemble(collection(polygonFeature("x", square)), reportDoc(opp("y", 1, "")), "Berlin", "berlin")
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, CodeNoRegions, rerr.Code)
	assert.True(t, strings.HasPrefix(err.Error(), "Could not display any regions for Berlin"))
	assert.Equal(t, 1, obs.calls)
	assert.Equal(t, err, obs.err)
}

func TestAssembleEmptyCollectionSucceeds(t *testing.T) {
	a := NewAssembler(nil, zerolog.Nop(), nil)
	res, err := a.Assemble(collection(), reportDoc(opp("y", 1, "")), "Berlin", "berlin")
	require.NoError(t, err)
	assert.Empty(t, res.Report.Regions)
	assert.Equal(t, FallbackView.Center, res.Report.MapCenter)

	out, err := json.Marshal(res.Report)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"regions":[]`)
}

func TestAssembleFinancials(t *testing.T) {
	a := newTestAssembler()
	rep := []byte(`{"executive_summary": "Summary", "ranked_opportunities": [
		{"sub_area_name": "full", "financials": {"estimated_roi_percentage": 14.5, "total_projected_revenue_usd": 2500000, "total_projected_cost_usd": 1000000, "net_profit": 1500000}},
		{"sub_area_name": "partial", "financials": {"estimated_roi_percentage": "7.25"}},
		{"sub_area_name": "none"},
		{"financials": {"estimated_roi_percentage": 99}}
	]}`)
	geo := collection(polygonFeature("full", square), polygonFeature("partial", square), polygonFeature("none", square))
	res, err := a.Assemble(geo, rep, "Berlin", "berlin")
	require.NoError(t, err)
	require.Len(t, res.Report.Regions, 3)

	full := res.Report.Regions[0]
	assert.Equal(t, 14.5, full.ROIPercentage)
	assert.Equal(t, "€2,500,000", full.ProjectedRevenue)
	assert.Equal(t, 1000000.0, full.ProjectedCost)
	assert.Equal(t, 1500000.0, full.NetProfit)
	assert.Equal(t, "Summary", full.ExecutiveSummary)
	assert.Equal(t, DefaultTimeline, full.Timeline)

	partial := res.Report.Regions[1]
	assert.Equal(t, 7.25, partial.ROIPercentage)
	assert.Equal(t, "€0", partial.ProjectedRevenue)

	none := res.Report.Regions[2]
	assert.Equal(t, 0.0, none.ROIPercentage)
	assert.Equal(t, 0.0, none.NetProfit)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnMalformedOpportunity, res.Warnings[0].Kind)
	assert.Equal(t, -1, res.Warnings[0].FeatureIndex)
}

func TestFormatCurrency(t *testing.T) {
	for _, tc := range []struct {
		in   float64
		want string
	}{
		{0, "€0"},
		{999, "€999"},
		{1234567, "€1,234,567"},
		{1234.5678, "€1,234.568"},
	} {
		assert.Equal(t, tc.want, FormatCurrency(tc.in), fmt.Sprint(tc.in))
	}
}

func TestFormatCurrencyHugeAmountStaysFinite(t *testing.T) {
	got := FormatCurrency(1.7e306)
	assert.True(t, strings.HasPrefix(got, "€1,7"), got)
	assert.NotContains(t, got, "Inf")
}

func TestAmountRejectsNonFinite(t *testing.T) {
	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`"NaN"`), &a))
	assert.Equal(t, Amount(0), a)
	require.NoError(t, json.Unmarshal([]byte(`true`), &a))
	assert.Equal(t, Amount(0), a)
	assert.False(t, math.IsNaN(float64(a)))
}

func TestReportFindRegion(t *testing.T) {
	r := &Report{Regions: []Region{{ID: "Mitte"}, {ID: "Pankow"}}}
	got, ok := r.FindRegion("pankow")
	require.True(t, ok)
	assert.Equal(t, "Pankow", got.ID)
	_, ok = r.FindRegion("nope")
	assert.False(t, ok)
}
