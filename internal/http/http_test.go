package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moneymoved/internal/dataset"
	"moneymoved/internal/query"
	"moneymoved/internal/services/storage"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"unknown dataset", &dataset.UnknownDatasetError{Name: "x"}, http.StatusNotFound, "unknown_dataset"},
		{"wrapped unknown dataset", fmt.Errorf("chart: %w", &dataset.UnknownDatasetError{Name: "x"}), http.StatusNotFound, "unknown_dataset"},
		{"schema", &dataset.SchemaError{Column: "c", Reason: "unknown column"}, http.StatusBadRequest, "schema"},
		{"operator", &query.UnsupportedOperatorError{Op: "~"}, http.StatusBadRequest, "unsupported_operator"},
		{"parameter", &ParamError{Name: "fy", Value: "x", Err: errors.New("bad")}, http.StatusBadRequest, "parameter"},
		{"locked", &dataset.LoadError{Name: "m", Err: storage.ErrLocked}, http.StatusServiceUnavailable, "locked"},
		{"load", &dataset.LoadError{Name: "m", Err: errors.New("boom")}, http.StatusInternalServerError, "load"},
		{"other", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, kind := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, zap.NewNop(), &dataset.UnknownDatasetError{Name: "ghost"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unknown_dataset", body.Kind)
	assert.Contains(t, body.Error, "ghost")
}

func TestParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?fy=2025&target=1.5&fallback=true&cols=a,%20b&cols=c&bad=x", nil)

	fy, err := IntParam(r, "fy", 0)
	require.NoError(t, err)
	assert.Equal(t, 2025, fy)

	missing, err := IntParam(r, "top_n", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, missing)

	target, err := FloatParam(r, "target", 0)
	require.NoError(t, err)
	assert.Equal(t, 1.5, target)

	fallback, err := BoolParam(r, "fallback", false)
	require.NoError(t, err)
	assert.True(t, fallback)

	assert.Equal(t, []string{"a", "b", "c"}, ListParam(r, "cols"))

	_, err = IntParam(r, "bad", 0)
	var pe *ParamError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad", pe.Name)
}

func TestParseFilters(t *testing.T) {
	schema := dataset.NewSchema(
		dataset.Field{Name: "status", Kind: dataset.KindString},
		dataset.Field{Name: "fy", Kind: dataset.KindNumber},
	)

	r := httptest.NewRequest(http.MethodGet, "/?filter=status:in:A%7CB&filter=fy:%3E%3D:2024&filter=status:not_null", nil)
	clauses, err := ParseFilters(r, schema)
	require.NoError(t, err)
	assert.Equal(t, []query.Clause{
		{Column: "status", Op: query.OpIn, Value: []any{"A", "B"}},
		{Column: "fy", Op: query.OpGe, Value: 2024.0},
		{Column: "status", Op: query.OpIsNotNull},
	}, clauses)

	bad := []string{"/?filter=status", "/?filter=status:like:A", "/?filter=fy:eq:abc", "/?filter=nope:eq:1"}
	for _, target := range bad {
		_, err := ParseFilters(httptest.NewRequest(http.MethodGet, target, nil), schema)
		status, _ := StatusFor(err)
		assert.Equal(t, http.StatusBadRequest, status, target)
	}
}
