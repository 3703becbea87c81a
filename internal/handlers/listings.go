// internal/handlers/listings.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dealhawk/dealhawk-backend/internal/clickstats"
	"github.com/dealhawk/dealhawk-backend/internal/repository"
	"github.com/dealhawk/dealhawk-backend/internal/utils"
)

type ListingHandler struct {
	repo   repository.Repository
	clicks clickstats.Stats
}

func NewListingHandler(repo repository.Repository, clicks clickstats.Stats) *ListingHandler {
	return &ListingHandler{repo: repo, clicks: clicks}
}

// RecordClick feeds the scorer's active-view and popularity signals.
func (h *ListingHandler) RecordClick(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing id", nil)
		return
	}

	listing, err := h.repo.ListingByID(c.Request.Context(), listingID)
	if err != nil {
		utils.NotFoundResponse(c, "Listing")
		return
	}

	if err := h.clicks.Record(c.Request.Context(), listing.ID, listing.ProductID); err != nil {
		utils.InternalErrorResponse(c, "Failed to record click")
		return
	}

	utils.SuccessResponse(c, gin.H{"recorded": true})
}

// ProductDeals returns the deals and tracked listings for one product.
func (h *ListingHandler) ProductDeals(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product id", nil)
		return
	}

	deals, err := h.repo.DealsForProduct(c.Request.Context(), productID)
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to fetch deals")
		return
	}

	utils.SuccessResponse(c, deals)
}
