package problems

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	inner, ok := body["error"].(map[string]any)
	require.True(t, ok, "envelope must nest under \"error\"")
	return inner
}

func TestWriteProblemEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	p := Validation("bad input", "/api/v1/bookings").WithExtra(map[string]any{
		"errors": map[string]string{"flight_id": "flight_id is required"},
	})
	WriteProblem(rec, p)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	e := decodeEnvelope(t, rec)
	assert.Equal(t, Type("validation-error"), e["type"])
	assert.Equal(t, "Validation Error", e["title"])
	assert.Equal(t, float64(400), e["status"])
	assert.Equal(t, "bad input", e["detail"])
	assert.Equal(t, "/api/v1/bookings", e["instance"])
	assert.NotEmpty(t, e["trace_id"])
	assert.Contains(t, e, "errors")
}

func TestTraceIDFreshPerWrite(t *testing.T) {
	p := NotFound("gone", "/x")
	a, b := httptest.NewRecorder(), httptest.NewRecorder()
	WriteProblem(a, p)
	WriteProblem(b, p)
	assert.NotEqual(t, decodeEnvelope(t, a)["trace_id"], decodeEnvelope(t, b)["trace_id"])
}

func TestConstructorStatuses(t *testing.T) {
	cases := []struct {
		p    *Problem
		want int
	}{
		{Validation("", ""), 400},
		{Unauthorized("", ""), 401},
		{Forbidden("", ""), 403},
		{NotFound("", ""), 404},
		{RateLimit("", ""), 429},
		{Internal("", ""), 500},
		{ServiceUnavailable("", ""), 503},
		{MissingTenantHeader(""), 400},
		{InvalidTenant("x", ""), 404},
		{InvalidTenantConfig("x", ""), 500},
		{NotSupported("", ""), 503},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.p.Status, c.p.Title)
	}
}

func TestIsNotSupported(t *testing.T) {
	assert.True(t, IsNotSupported(NotSupported("no refunds", "")))
	assert.False(t, IsNotSupported(Forbidden("nope", "")))
	assert.False(t, IsNotSupported(errors.New("plain")))
	assert.False(t, IsNotSupported(nil))
}

func TestWriteDegradesUnclassifiedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/1", nil)
	Write(rec, req, errors.New("pgx: connection refused"), zap.NewNop().Sugar())

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	e := decodeEnvelope(t, rec)
	// Internal error text must not leak to the client.
	assert.NotContains(t, e["detail"], "pgx")
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 404, StatusOf(NotFound("", "")))
	assert.Equal(t, 503, StatusOf(errors.New("anything")))
}
