// internal/handlers/admin_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealhawk/dealhawk-backend/internal/ingest"
	"github.com/dealhawk/dealhawk-backend/internal/refresh"
)

type stubRefresher struct {
	summary   refresh.Summary
	batchSize int
	expired   int
}

func (s *stubRefresher) RefreshDeals(_ context.Context, batchSize int) (refresh.Summary, error) {
	s.batchSize = batchSize
	return s.summary, nil
}

func (s *stubRefresher) SweepExpired(context.Context) (int, error) {
	return s.expired, nil
}

type stubIngester struct {
	summary     ingest.Summary
	productID   uuid.UUID
	marketplace string
}

func (s *stubIngester) IngestListings(_ context.Context, productID uuid.UUID, _, marketplaceName string) (ingest.Summary, error) {
	s.productID = productID
	s.marketplace = marketplaceName
	return s.summary, nil
}

func newTestRouter(refresher Refresher, ingester Ingester) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewAdminHandler(refresher, ingester, nil)

	r := gin.New()
	r.POST("/admin/refresh", handler.TriggerRefresh)
	r.POST("/admin/ingest", handler.TriggerIngest)
	r.POST("/admin/sweep", handler.TriggerSweep)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTriggerRefreshEmptyBodyUsesDefaults(t *testing.T) {
	refresher := &stubRefresher{summary: refresh.Summary{Total: 3, Updated: 3}}
	r := newTestRouter(refresher, &stubIngester{})

	w := postJSON(t, r, "/admin/refresh", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, refresher.batchSize)
	assert.Contains(t, w.Body.String(), `"total":3`)
}

func TestTriggerIngestCreatedListingsReturn201(t *testing.T) {
	ingester := &stubIngester{summary: ingest.Summary{Searched: 2, Matched: 4, Created: 2}}
	r := newTestRouter(&stubRefresher{}, ingester)

	productID := uuid.New()
	w := postJSON(t, r, "/admin/ingest", gin.H{
		"product_id":  productID.String(),
		"marketplace": "ebay",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, productID, ingester.productID)
	assert.Equal(t, "ebay", ingester.marketplace)
}

func TestTriggerIngestNothingCreatedReturns200(t *testing.T) {
	ingester := &stubIngester{summary: ingest.Summary{Searched: 2}}
	r := newTestRouter(&stubRefresher{}, ingester)

	w := postJSON(t, r, "/admin/ingest", gin.H{
		"product_id":  uuid.New().String(),
		"marketplace": "ebay",
	})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTriggerIngestValidation(t *testing.T) {
	r := newTestRouter(&stubRefresher{}, &stubIngester{})

	w := postJSON(t, r, "/admin/ingest", gin.H{"product_id": "not-a-uuid", "marketplace": "ebay"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, r, "/admin/ingest", gin.H{"product_id": uuid.New().String()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerSweep(t *testing.T) {
	refresher := &stubRefresher{expired: 5}
	r := newTestRouter(refresher, &stubIngester{})

	w := postJSON(t, r, "/admin/sweep", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"expired":5`)
}
