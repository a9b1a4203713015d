// Package render turns a region's detailed report into a standalone HTML page
// and, through headless Chromium, into a PDF.
package render

import (
	_ "embed"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/joelkehle/roimap/internal/report"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed style.css
var styleCSS string

const emptyMessage = "No detailed report is available for this region."

var (
	md   = goldmark.New(goldmark.WithExtensions(extension.GFM))
	reH2 = regexp.MustCompile(`<h2([^>]*)>`)
)

// RegionPage renders the full HTML document for one region of a city report.
func RegionPage(city string, region *report.Region) (string, error) {
	contentHTML := "<p class='report-empty'>" + html.EscapeString(emptyMessage) + "</p>"
	if strings.TrimSpace(region.DetailedReport) != "" {
		var content strings.Builder
		if err := md.Convert([]byte(region.DetailedReport), &content); err != nil {
			return "", fmt.Errorf("markdown convert: %w", err)
		}
		contentHTML = applyPrintLayoutHooks(content.String())
	}

	title := region.Name
	if title == "" {
		title = region.ID
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title+" | "+city) + "</title>" +
		"<style>" + styleCSS + "\n" +
		"html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;} " +
		`h2[data-page-break-before="true"]{break-before:page;page-break-before:always;} ` +
		"@media print{ @page{size:auto;margin:12mm;} body{background:#fff !important;} .report-wrap{max-width:none;padding:0;} .report-viewer{border:0 !important;} }" +
		"</style></head><body>" +
		"<div class='report-wrap'><section class='report-viewer'><div class='report-header'>" +
		"<h1>" + html.EscapeString(title) + "</h1>" +
		"<div class='report-meta'>" + buildMetaHTML(city, region) + "</div>" +
		"<div class='report-badges'>" + buildBadgeHTML(region) + "</div>" +
		"</div><div class='report-html'>" + contentHTML + "</div></section></div>" +
		"</body></html>", nil
}

// applyPrintLayoutHooks starts every top-level section after the first on a
// new printed page.
func applyPrintLayoutHooks(contentHTML string) string {
	seen := 0
	return reH2.ReplaceAllStringFunc(contentHTML, func(tag string) string {
		seen++
		if seen == 1 {
			return tag
		}
		m := reH2.FindStringSubmatch(tag)
		return `<h2` + m[1] + ` data-page-break-before="true">`
	})
}

func buildMetaHTML(city string, r *report.Region) string {
	var out strings.Builder
	row := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		out.WriteString("<div><strong>" + label + ":</strong> " + html.EscapeString(value) + "</div>")
	}
	row("City", city)
	row("Projected revenue", r.ProjectedRevenue)
	row("Projected cost", report.FormatCurrency(r.ProjectedCost))
	row("Net profit", report.FormatCurrency(r.NetProfit))
	row("Timeline", r.Timeline)
	if r.Coordinates != (report.LatLng{}) {
		row("Center", fmt.Sprintf("%.4f, %.4f", r.Coordinates.Lat, r.Coordinates.Lng))
	}
	return out.String()
}

func buildBadgeHTML(r *report.Region) string {
	return "<span class='report-badge'>ROI " + html.EscapeString(fmt.Sprintf("%.1f%%", r.ROIPercentage)) + "</span>"
}
