package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveLogged(t *testing.T, level zerolog.Level, h http.HandlerFunc, req *http.Request) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := chimiddleware.RequestID(RequestLogger(zerolog.New(&buf).Level(level))(h))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := strings.TrimSpace(buf.String())
	if line == "" {
		return nil
	}
	lines := strings.Split(line, "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestRequestLogger_GatewayFailureLogsAtError(t *testing.T) {
	entry := serveLogged(t, zerolog.InfoLevel, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"rail unavailable"}`))
	}, httptest.NewRequest(http.MethodPost, "/api/v1/payment-runs/3/execute", nil))

	require.NotNil(t, entry)
	assert.Equal(t, "error", entry["level"])
	assert.EqualValues(t, 502, entry["status"])
	assert.EqualValues(t, len(`{"error":"rail unavailable"}`), entry["bytes"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestRequestLogger_ImplicitOKAndIdempotencyKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/disbursements", nil)
	req.Header.Set("Idempotency-Key", "inv-11-run-3")

	entry := serveLogged(t, zerolog.InfoLevel, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}, req)

	require.NotNil(t, entry)
	assert.EqualValues(t, 200, entry["status"])
	assert.Equal(t, "inv-11-run-3", entry["idempotency_key"])
}

func TestRequestLogger_HealthChecksAreDebugOnly(t *testing.T) {
	entry := serveLogged(t, zerolog.InfoLevel, func(w http.ResponseWriter, r *http.Request) {},
		httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Nil(t, entry)
}

func TestRequestLogger_ContextLoggerCarriesRequestID(t *testing.T) {
	entry := serveLogged(t, zerolog.DebugLevel, func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("handler line")
	}, httptest.NewRequest(http.MethodGet, "/api/v1/reviews", nil))

	require.NotNil(t, entry)
	assert.NotEmpty(t, entry["request_id"])
}
