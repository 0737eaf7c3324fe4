package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"auctionharvester/internal/cache"
	"auctionharvester/internal/logger"
	"auctionharvester/internal/models"
	"auctionharvester/internal/util"
	"auctionharvester/internal/validation"
)

// Handler serves read-only views of the auction collection
type Handler struct {
	cache *cache.CollectionCache
	log   logger.Logger
}

// NewHandler creates a handler reading through c
func NewHandler(c *cache.CollectionCache, log logger.Logger) *Handler {
	return &Handler{cache: c, log: log}
}

// AuctionView is the list representation of one record
type AuctionView struct {
	AuctionID   string        `json:"auction_id"`
	Title       string        `json:"title"`
	Slug        string        `json:"slug"`
	Status      models.Status `json:"status"`
	Summary     string        `json:"summary"`
	Expected    int           `json:"vehicle_count"`
	Loaded      int           `json:"loaded_count"`
	Filtered    int           `json:"filtered_count"`
	WithImages  int           `json:"with_images_count"`
	RetryRounds int           `json:"retry_rounds"`
	Derived     bool          `json:"derived"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func viewOf(rec *models.AuctionRecord) AuctionView {
	return AuctionView{
		AuctionID:   rec.ID(),
		Title:       rec.Title,
		Slug:        rec.Slug,
		Status:      rec.Status,
		Summary:     rec.Summary,
		Expected:    rec.Expected(),
		Loaded:      rec.LoadedCount,
		Filtered:    rec.FilteredCount,
		WithImages:  rec.WithImagesCount,
		RetryRounds: rec.RetryRounds,
		Derived:     rec.Derived,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// Health godoc
// @Summary Health check
// @Description Reports liveness, whether the cached collection is due for reload, and its age.
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "status, cache_expired and collection_age"
// @Router /api/health [get]
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok", "cache_expired": h.cache.IsExpired()}
	if age, ok := h.cache.Age(); ok {
		resp["collection_age"] = age.Round(time.Second).String()
	}
	c.JSON(http.StatusOK, resp)
}

// ListAuctions godoc
// @Summary List auction records
// @Description Lists every record in the collection, originals and derivatives. Rate limited per IP.
// @Tags auctions
// @Produce json
// @Param status query string false "Only records with this status" Enums(complete, partial, no_match, timeout, failed)
// @Success 200 {object} map[string]interface{} "count and auctions"
// @Failure 400 {object} map[string]string "error: invalid status"
// @Failure 429 {object} map[string]string "error: Too Many Requests - Rate limited"
// @Router /api/auctions [get]
func (h *Handler) ListAuctions(c *gin.Context) {
	status := c.Query("status")
	if err := validation.ValidateStatus(status); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	coll, err := h.cache.Get(c.Request.Context())
	if err != nil {
		util.SafeErrorResponse(c, h.log, http.StatusInternalServerError, "Failed to load auctions", err)
		return
	}

	views := make([]AuctionView, 0, len(coll))
	for _, rec := range coll {
		if status != "" && string(rec.Status) != status {
			continue
		}
		views = append(views, viewOf(rec))
	}
	c.JSON(http.StatusOK, gin.H{"count": len(views), "auctions": views})
}

// GetAuction godoc
// @Summary Get the records of one auction
// @Description Returns the full records sharing an auction id: the original and its complete derivative when one exists.
// @Tags auctions
// @Produce json
// @Param id path string true "Auction ID"
// @Success 200 {object} map[string]interface{} "auction_id and records"
// @Failure 400 {object} map[string]string "error: invalid auction id"
// @Failure 404 {object} map[string]string "error: Auction not found"
// @Router /api/auctions/{id} [get]
func (h *Handler) GetAuction(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateAuctionID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	coll, err := h.cache.Get(c.Request.Context())
	if err != nil {
		util.SafeErrorResponse(c, h.log, http.StatusInternalServerError, "Failed to load auctions", err)
		return
	}

	records := make([]*models.AuctionRecord, 0, 2)
	for _, rec := range coll {
		if rec.ID() == id {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Auction not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"auction_id": id, "records": records})
}

// Summary godoc
// @Summary Collection summary
// @Description Counts original records per status, pending and derived records, and vehicle totals.
// @Tags auctions
// @Produce json
// @Success 200 {object} map[string]interface{} "auctions, pending, derived, by_status, vehicles, vehicles_with_image"
// @Failure 500 {object} map[string]interface{} "error: Failed to load auctions"
// @Router /api/summary [get]
func (h *Handler) Summary(c *gin.Context) {
	coll, err := h.cache.Get(c.Request.Context())
	if err != nil {
		util.SafeErrorResponse(c, h.log, http.StatusInternalServerError, "Failed to load auctions", err)
		return
	}

	byStatus := map[string]int{}
	for _, s := range []models.Status{models.StatusComplete, models.StatusPartial, models.StatusNoMatch, models.StatusTimeout, models.StatusFailed} {
		byStatus[string(s)] = 0
	}
	var auctions, pending, derived, vehicles, withImages int
	for _, rec := range coll {
		if rec.Derived {
			derived++
			continue
		}
		auctions++
		if !rec.Processed() {
			pending++
			continue
		}
		byStatus[string(rec.Status)]++
		vehicles += len(rec.Vehicles)
		withImages += rec.WithImagesCount
	}

	c.JSON(http.StatusOK, gin.H{
		"auctions":            auctions,
		"pending":             pending,
		"derived":             derived,
		"by_status":           byStatus,
		"vehicles":            vehicles,
		"vehicles_with_image": withImages,
	})
}
