package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/s3journal/pkg/journal"
)

// stubJournal implements journal.Journal for handler tests.
type stubJournal struct {
	stats   journal.Stats
	flushes int
	flushErr error
}

func (s *stubJournal) Put(record any) (bool, error) { return true, nil }
func (s *stubJournal) Stats() journal.Stats         { return s.stats }
func (s *stubJournal) Close() error                 { return nil }

func (s *stubJournal) Flush() error {
	s.flushes++
	return s.flushErr
}

func TestRouter_Health(t *testing.T) {
	router := NewRouter(&stubJournal{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_Stats(t *testing.T) {
	stub := &stubJournal{stats: journal.Stats{Enqueued: 10, Uploaded: 7, Dropped: 1}}
	router := NewRouter(stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got journal.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, stub.stats, got)
}

func TestRouter_Flush(t *testing.T) {
	stub := &stubJournal{}
	router := NewRouter(stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/flush", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, stub.flushes)
}

func TestRouter_FlushClosed(t *testing.T) {
	stub := &stubJournal{flushErr: journal.ErrClosed}
	router := NewRouter(stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/flush", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_MetricsDisabled(t *testing.T) {
	router := NewRouter(&stubJournal{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
