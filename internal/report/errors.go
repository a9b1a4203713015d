package report

import "fmt"

const (
	CodeMalformedGeometry = "malformed_geometry"
	CodeMalformedReport   = "malformed_report"
	CodeNoRegions         = "no_regions"
)

// Error is a fatal assembly failure. Per-feature problems never produce an
// Error; they are returned as Warnings on the Result.
type Error struct {
	Code    string
	City    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code, city, format string, args ...any) *Error {
	return &Error{Code: code, City: city, Message: fmt.Sprintf(format, args...)}
}

func errMalformedGeometry(city string) *Error {
	return newError(CodeMalformedGeometry, city,
		"The GeoJSON data for '%s' is malformed. The document does not appear to be a valid GeoJSON Feature or FeatureCollection object.", city)
}

func errMalformedReport(city string) *Error {
	return newError(CodeMalformedReport, city,
		"The report data for '%s' is malformed. The document is missing the required 'ranked_opportunities' array.", city)
}

func errNoRegions(city string) *Error {
	return newError(CodeNoRegions, city,
		"Could not display any regions for %s. All polygon data was malformed or could not be matched with a report.", city)
}
