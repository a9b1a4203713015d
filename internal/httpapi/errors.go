package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joelkehle/roimap/internal/cityview"
	"github.com/joelkehle/roimap/internal/docsource"
	"github.com/joelkehle/roimap/internal/report"
)

// apiError is an error with the HTTP status it should be reported with.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string { return e.Message }

func errBadRequest(msg string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Message: msg}
}

func errNotFound(msg string) *apiError {
	return &apiError{Status: http.StatusNotFound, Message: msg}
}

func errUnavailable(msg string) *apiError {
	return &apiError{Status: http.StatusServiceUnavailable, Message: msg}
}

// writeJSON encodes payload before committing the status, so an unencodable
// payload becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": "failed to encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// writeError reports err as {"error": message}. Assembly failures and
// unexpected errors are 500s carrying the error text.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	var ae *apiError
	var re *report.Error
	switch {
	case errors.As(err, &ae):
		status, msg = ae.Status, ae.Message
	case errors.Is(err, cityview.ErrUnknownCity):
		status, msg = http.StatusNotFound, "Invalid city"
	case errors.Is(err, cityview.ErrUnknownRegion):
		status = http.StatusNotFound
	case errors.Is(err, docsource.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &re):
		msg = re.Message
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
