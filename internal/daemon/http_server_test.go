package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func serverFixture(t *testing.T) *HTTPServer {
	t.Helper()
	d, err := New("", testWorkflow())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.store.Close() })
	return d.httpServer
}

func TestHTTPHealthz(t *testing.T) {
	s := serverFixture(t)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHTTPStatus(t *testing.T) {
	s := serverFixture(t)

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "docs", status.Workflow)
	require.Equal(t, 0, status.ActiveRuns)
}

func TestHTTPEventIngestionMatched(t *testing.T) {
	s := serverFixture(t)

	body := strings.NewReader(`{"kind": "push", "ref": "main"}`)
	rec := httptest.NewRecorder()
	s.handleEvent(rec, httptest.NewRequest(http.MethodPost, "/api/events", body))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		Matched bool   `json:"matched"`
		RunID   string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Matched)
	require.NotEmpty(t, resp.RunID)

	s.daemon.governor.Wait()
}

func TestHTTPEventIngestionIgnored(t *testing.T) {
	s := serverFixture(t)

	body := strings.NewReader(`{"kind": "push", "ref": "feature-x"}`)
	rec := httptest.NewRecorder()
	s.handleEvent(rec, httptest.NewRequest(http.MethodPost, "/api/events", body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"matched": false}`, rec.Body.String())
}

func TestHTTPEventIngestionRejectsBadPayload(t *testing.T) {
	s := serverFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"unknown kind", `{"kind": "deploy", "ref": "main"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.handleEvent(rec, httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(tt.body)))
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHTTPEventIngestionMethodNotAllowed(t *testing.T) {
	s := serverFixture(t)

	rec := httptest.NewRecorder()
	s.handleEvent(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHTTPRunByIDNotFound(t *testing.T) {
	s := serverFixture(t)

	rec := httptest.NewRecorder()
	s.handleRunByID(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPRunsListsHistory(t *testing.T) {
	s := serverFixture(t)

	body := strings.NewReader(`{"kind": "push", "ref": "main"}`)
	rec := httptest.NewRecorder()
	s.handleEvent(rec, httptest.NewRequest(http.MethodPost, "/api/events", body))
	require.Equal(t, http.StatusAccepted, rec.Code)
	s.daemon.governor.Wait()

	rec = httptest.NewRecorder()
	s.handleRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		History []json.RawMessage `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.History, 1)
}
