package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"moneymoved/internal/dataset"
	"moneymoved/internal/query"
	"moneymoved/internal/services/storage"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// ErrorResponse sends a JSON error response
func ErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	JSON(w, statusCode, ErrorBody{Error: message})
}

// StatusFor maps a domain error onto an HTTP status and a short kind.
func StatusFor(err error) (int, string) {
	var (
		unknown  *dataset.UnknownDatasetError
		schema   *dataset.SchemaError
		operator *query.UnsupportedOperatorError
		param    *ParamError
		load     *dataset.LoadError
	)
	switch {
	case errors.As(err, &unknown):
		return http.StatusNotFound, "unknown_dataset"
	case errors.As(err, &schema):
		return http.StatusBadRequest, "schema"
	case errors.As(err, &operator):
		return http.StatusBadRequest, "unsupported_operator"
	case errors.As(err, &param):
		return http.StatusBadRequest, "parameter"
	case errors.Is(err, storage.ErrLocked):
		return http.StatusServiceUnavailable, "locked"
	case errors.As(err, &load):
		return http.StatusInternalServerError, "load"
	}
	return http.StatusInternalServerError, ""
}

// Error logs err and sends it with the status StatusFor picks.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, kind := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err), zap.Int("status", status))
	} else {
		logger.Debug("request rejected", zap.Error(err), zap.Int("status", status))
	}
	JSON(w, status, ErrorBody{Error: err.Error(), Kind: kind})
}

// ParamError is a malformed query parameter.
type ParamError struct {
	Name  string
	Value string
	Err   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%q: %v", e.Name, e.Value, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }

// IntParam parses an integer query parameter, returning def when absent.
func IntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParamError{Name: name, Value: raw, Err: err}
	}
	return v, nil
}

// FloatParam parses a float query parameter, returning def when absent.
func FloatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ParamError{Name: name, Value: raw, Err: err}
	}
	return v, nil
}

// BoolParam parses a boolean query parameter, returning def when absent.
func BoolParam(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ParamError{Name: name, Value: raw, Err: err}
	}
	return v, nil
}

// ListParam splits a comma separated query parameter, dropping blanks.
func ListParam(r *http.Request, name string) []string {
	var out []string
	for _, raw := range r.URL.Query()[name] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// ParseFilters reads repeated filter=column:op[:value] parameters. Values
// of in and not_in are separated by "|". Values are converted to the
// column kind using schema.
func ParseFilters(r *http.Request, schema *dataset.Schema) ([]query.Clause, error) {
	var clauses []query.Clause
	for _, raw := range r.URL.Query()["filter"] {
		c, err := query.ParseFilter(schema, raw)
		if errors.Is(err, query.ErrMalformedFilter) {
			return nil, &ParamError{Name: "filter", Value: raw, Err: err}
		}
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}
