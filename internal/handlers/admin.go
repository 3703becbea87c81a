// internal/handlers/admin.go
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dealhawk/dealhawk-backend/internal/ingest"
	"github.com/dealhawk/dealhawk-backend/internal/refresh"
	"github.com/dealhawk/dealhawk-backend/internal/repository"
	"github.com/dealhawk/dealhawk-backend/internal/utils"
)

// Refresher is the slice of the refresh orchestrator the admin endpoints
// trigger.
type Refresher interface {
	RefreshDeals(ctx context.Context, batchSize int) (refresh.Summary, error)
	SweepExpired(ctx context.Context) (int, error)
}

// Ingester runs the listing-ingestion pipeline for one product.
type Ingester interface {
	IngestListings(ctx context.Context, productID uuid.UUID, query, marketplaceName string) (ingest.Summary, error)
}

type AdminHandler struct {
	refresher Refresher
	ingester  Ingester
	repo      repository.Repository
}

func NewAdminHandler(refresher Refresher, ingester Ingester, repo repository.Repository) *AdminHandler {
	return &AdminHandler{
		refresher: refresher,
		ingester:  ingester,
		repo:      repo,
	}
}

type TriggerRefreshRequest struct {
	BatchSize int `json:"batch_size" validate:"omitempty,min=1,max=500"`
}

// TriggerRefresh runs one refresh batch synchronously and returns the
// aggregate counts.
func (h *AdminHandler) TriggerRefresh(c *gin.Context) {
	var req TriggerRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.BadRequestResponse(c, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ValidationErrorResponse(c, utils.GetValidationErrors(err))
		return
	}

	summary, err := h.refresher.RefreshDeals(c.Request.Context(), req.BatchSize)
	if err != nil {
		utils.InternalErrorResponse(c, "Refresh batch failed")
		return
	}

	utils.SuccessResponse(c, summary)
}

type TriggerIngestRequest struct {
	ProductID   string `json:"product_id" validate:"required,uuid"`
	Query       string `json:"query" validate:"omitempty,max=255"`
	Marketplace string `json:"marketplace" validate:"required"`
}

// TriggerIngest runs the listing-ingestion pipeline for one product.
func (h *AdminHandler) TriggerIngest(c *gin.Context) {
	var req TriggerIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ValidationErrorResponse(c, utils.GetValidationErrors(err))
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product id", nil)
		return
	}

	summary, err := h.ingester.IngestListings(c.Request.Context(), productID, req.Query, req.Marketplace)
	if err != nil {
		utils.InternalErrorResponse(c, "Ingestion failed")
		return
	}

	if summary.Created > 0 {
		utils.CreatedResponse(c, summary)
		return
	}
	utils.SuccessResponse(c, summary)
}

// TriggerSweep expires all deals past their expiration date.
func (h *AdminHandler) TriggerSweep(c *gin.Context) {
	expired, err := h.refresher.SweepExpired(c.Request.Context())
	if err != nil {
		utils.InternalErrorResponse(c, "Expiry sweep failed")
		return
	}

	utils.SuccessResponse(c, gin.H{"expired": expired})
}

// ListRemediationTasks returns pending manual-remediation tasks, oldest
// first.
func (h *AdminHandler) ListRemediationTasks(c *gin.Context) {
	tasks, err := h.repo.PendingRemediationTasks(c.Request.Context())
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to fetch remediation tasks")
		return
	}

	utils.SuccessResponse(c, tasks)
}
