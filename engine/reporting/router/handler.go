package router

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/reporting"
	"github.com/aethermart/dataplane/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Handler serves the read-side endpoints: audit listings and the
// reporting queries.
type Handler struct {
	service *reporting.Service
}

// NewHandler creates a reporting handler.
func NewHandler(service *reporting.Service) *Handler {
	return &Handler{service: service}
}

// PriceHistory lists a product's recorded price movements.
func (h *Handler) PriceHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c)
		if !ok {
			return
		}
		changes, err := h.service.PriceHistory(c.Request.Context(), id)
		if err != nil {
			h.respondReadError(c, "price history", err)
			return
		}
		if changes == nil {
			changes = []reporting.PriceChange{}
		}
		c.JSON(http.StatusOK, gin.H{
			"data": gin.H{
				"product_id": id,
				"changes":    changes,
				"count":      len(changes),
			},
			"message": "Success",
		})
	}
}

// AuditTrail lists the recorded field changes for one row of a
// collection.
func (h *Handler) AuditTrail(kind entity.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c)
		if !ok {
			return
		}
		entries, err := h.service.AuditTrail(c.Request.Context(), kind, id)
		if err != nil {
			h.respondReadError(c, "audit trail", err)
			return
		}
		if entries == nil {
			entries = []reporting.AuditEntry{}
		}
		c.JSON(http.StatusOK, gin.H{
			"data": gin.H{
				"entity_kind": kind,
				"entity_id":   id,
				"entries":     entries,
				"count":       len(entries),
			},
			"message": "Success",
		})
	}
}

// CustomerValues ranks customers by lifetime order value. An optional
// limit query parameter caps the listing; zero or absent returns all.
func (h *Handler) CustomerValues() gin.HandlerFunc {
	return func(c *gin.Context) {
		var limit uint64
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "Invalid limit",
					"details": fmt.Sprintf("limit must be a non-negative integer, got %q", raw),
				})
				return
			}
			limit = parsed
		}
		values, err := h.service.CustomerValues(c.Request.Context(), limit)
		if err != nil {
			h.respondReadError(c, "customer values", err)
			return
		}
		if values == nil {
			values = []reporting.CustomerValue{}
		}
		c.JSON(http.StatusOK, gin.H{
			"data": gin.H{
				"customers": values,
				"count":     len(values),
			},
			"message": "Success",
		})
	}
}

// LoyaltyTiers lists customers with their computed loyalty tier.
func (h *Handler) LoyaltyTiers() gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := h.service.LoyaltyTiers(c.Request.Context())
		if err != nil {
			h.respondReadError(c, "loyalty tiers", err)
			return
		}
		if members == nil {
			members = []reporting.LoyaltyMember{}
		}
		c.JSON(http.StatusOK, gin.H{
			"data": gin.H{
				"members": members,
				"count":   len(members),
			},
			"message": "Success",
		})
	}
}

// Quality answers the current data-quality snapshot. The response is
// 200 whether or not the checks pass; healthy reports the verdict.
func (h *Handler) Quality() gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, err := h.service.Quality(c.Request.Context())
		if err != nil {
			h.respondReadError(c, "quality snapshot", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data": gin.H{
				"snapshot": snapshot,
				"healthy":  snapshot.Healthy(),
			},
			"message": "Success",
		})
	}
}

func (h *Handler) respondReadError(c *gin.Context, what string, err error) {
	logger.FromContext(c.Request.Context()).Error("Reporting query failed",
		"query", what,
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   fmt.Sprintf("Failed to load %s", what),
		"details": err.Error(),
	})
}

// parseIDParam extracts the row id path parameter.
func parseIDParam(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid id",
			"details": fmt.Sprintf("id must be a positive integer, got %q", raw),
		})
		return 0, false
	}
	return id, true
}
