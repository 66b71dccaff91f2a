package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/blue-robotics/nmea-bridge/aggregate"
	"github.com/blue-robotics/nmea-bridge/link"
	"github.com/blue-robotics/nmea-bridge/reader"
	"github.com/blue-robotics/nmea-bridge/state"
	"github.com/blue-robotics/nmea-bridge/udpfanout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	agg := aggregate.New()
	lm := link.New(nil)
	rd := reader.New(lm, agg, nil, nil)
	fo := udpfanout.New(nil)

	return New(lm, rd, agg, fo, st, nil)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleStatusWhenDisconnected(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "disconnected", body["status"])
}

func TestHandleConnectRejectsMissingPath(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/connect", connectRequest{Baud: 4800})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleConnectRejectsWrongMethod(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/connect", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSentencesListsRegistryWithDefaults(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/sentences", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body)
}

func TestHandleConfigureSentenceUnknownID(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/sentences/configure", configureSentenceRequest{ID: "NOPE", Enabled: true, IntervalSeconds: 1.0})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSensorsReturnsEmptySnapshot(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/sensors", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHistoryUnknownSeriesReturnsNull(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/sensors/history?series=not-a-series", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())
}

func TestHandleMessageTypesGetReturnsDefaults(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/message-types", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var types []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &types))
	assert.Equal(t, state.DefaultSelectedMessageTypes, types)
}

func TestHandleMessageTypesPostUpdatesFilterAndPersists(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/message-types", []string{"GPZDA"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"GPZDA"}, s.State.Get().SelectedMessageTypes)
}

func TestHandleStreamLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/stream/start", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.FanOut.Streaming())

	rec = doJSON(t, s, http.MethodGet, "/stream/status", nil)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, true, status["streaming"])

	rec = doJSON(t, s, http.MethodPost, "/stream/stop", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, s.FanOut.Streaming())
}

func TestHandleRawReturnsEmptyBeforeAnyReads(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/raw", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestHandleRegisterServiceReportsName(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/register_service", nil)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "nmea-bridge", body["name"])
}
