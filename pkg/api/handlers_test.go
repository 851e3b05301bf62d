package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdir/docdir/pkg/db"
	"github.com/docdir/docdir/pkg/domain"
)

func newTestRouter(t *testing.T) (*mux.Router, *db.DB) {
	t.Helper()

	database := db.Open(t.TempDir())
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Connect(context.Background()))

	router := mux.NewRouter()
	NewHandler(database).RegisterRoutes(router)
	return router, database
}

func doRequest(router *mux.Router, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHandleInsertAndFind(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(domain.Document{"name": "Mia", "age": 3})
	rec := doRequest(router, "POST", "/collections/cats/documents", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var inserted domain.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inserted))
	assert.NotEmpty(t, inserted.ID())

	rec = doRequest(router, "GET", "/collections/cats/documents?name=Mia", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var docs []domain.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "Mia", docs[0]["name"])
}

func TestHandleInsertInvalidBody(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, "POST", "/collections/cats/documents", []byte("{nope"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleFindEmptyCollection(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, "GET", "/collections/ghosts/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandleListCollections(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, "GET", "/collections", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"collections":[]}`, rec.Body.String())

	doRequest(router, "POST", "/collections/cats/documents", []byte("{}"))
	doRequest(router, "POST", "/collections/dogs/documents", []byte("{}"))

	rec = doRequest(router, "GET", "/collections", nil)
	var resp ListCollectionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"cats", "dogs"}, resp.Collections)
}

func TestHandleStats(t *testing.T) {
	router, _ := newTestRouter(t)

	for i := 0; i < 5; i++ {
		body, _ := json.Marshal(domain.Document{"n": i})
		doRequest(router, "POST", "/collections/cats/documents", body)
	}

	// Metadata refresh is asynchronous after first load; poll
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := doRequest(router, "GET", "/stats", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var stats domain.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		if stats.Collections == 1 && stats.Objects == 5 {
			assert.Greater(t, stats.FileSize, int64(0))
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stats never converged: %+v", stats)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestHandleDropCollection(t *testing.T) {
	router, database := newTestRouter(t)

	doRequest(router, "POST", "/collections/cats/documents", []byte("{}"))
	require.NoError(t, database.Collection("cats").WaitReady(context.Background()))

	rec := doRequest(router, "DELETE", "/collections/cats", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Handle survives the drop; only the registry forgot it
	assert.Equal(t, []string{"cats"}, database.ListCollections())
}

func TestHandleFindClosedDatabase(t *testing.T) {
	router, database := newTestRouter(t)

	doRequest(router, "POST", "/collections/cats/documents", []byte("{}"))
	require.NoError(t, database.Collection("cats").WaitReady(context.Background()))
	require.NoError(t, database.Close())

	// A closed store answers 503, not 500
	rec := doRequest(router, "GET", "/collections/cats/documents", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, http.StatusText(http.StatusServiceUnavailable), resp.Error)
}
