package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/gateway"
	"github.com/aethermart/dataplane/engine/infra/monitoring"
	"github.com/aethermart/dataplane/engine/normalize"
	"github.com/aethermart/dataplane/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// defaultActor tags mutations whose caller sent no X-Actor header.
const defaultActor = "api"

// Handler serves the mutation endpoints for every catalog collection.
type Handler struct {
	gateway  *gateway.Gateway
	registry *entity.Registry
	metrics  *monitoring.MutationMetrics
}

// NewHandler creates a mutation handler. metrics may be nil when
// monitoring is disabled.
func NewHandler(gw *gateway.Gateway, registry *entity.Registry, metrics *monitoring.MutationMetrics) *Handler {
	return &Handler{
		gateway:  gw,
		registry: registry,
		metrics:  metrics,
	}
}

// Create returns the insert handler for one collection.
func (h *Handler) Create(kind entity.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.apply(c, kind, gateway.OpInsert)
	}
}

// Update returns the update handler for one collection.
func (h *Handler) Update(kind entity.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.apply(c, kind, gateway.OpUpdate)
	}
}

// Delete returns the delete handler for one collection. The gateway
// refuses deletes, so this always answers 405.
func (h *Handler) Delete(kind entity.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.apply(c, kind, gateway.OpDelete)
	}
}

func (h *Handler) apply(c *gin.Context, kind entity.Kind, op gateway.Op) {
	ctx := c.Request.Context()
	def, err := h.registry.Get(kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unknown collection", "details": err.Error()})
		return
	}
	mutation := &gateway.Mutation{Kind: kind, Op: op, Actor: actor(c)}
	if op != gateway.OpInsert {
		id, ok := h.parseIDParam(c)
		if !ok {
			return
		}
		mutation.ID = id
	}
	if op != gateway.OpDelete {
		body, ok := h.decodeBody(c)
		if !ok {
			return
		}
		fields, problem := normalizeBody(def, body)
		if problem != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unparseable field value", "details": problem})
			return
		}
		mutation.Fields = fields
	}
	commit, err := h.gateway.Apply(ctx, mutation)
	if err != nil {
		h.respondMutationError(ctx, c, kind, op, err)
		return
	}
	h.metrics.Committed(ctx, kind, op, commit.Records)
	status := http.StatusOK
	message := fmt.Sprintf("%s updated successfully", kind)
	if op == gateway.OpInsert {
		status = http.StatusCreated
		message = fmt.Sprintf("%s created successfully", kind)
	}
	c.JSON(status, gin.H{
		"data": gin.H{
			"id":            commit.ID,
			"state":         renderState(commit.State),
			"audit_records": len(commit.Records),
		},
		"message": message,
	})
}

// respondMutationError centralizes mutation error logging and responses.
func (h *Handler) respondMutationError(ctx context.Context, c *gin.Context, kind entity.Kind, op gateway.Op, err error) {
	log := logger.FromContext(ctx)
	var rejection *gateway.Rejection
	switch {
	case errors.As(err, &rejection):
		h.metrics.Rejected(ctx, kind, op, rejection.Violation.Reason)
		log.Info("Mutation rejected",
			"kind", kind,
			"op", op,
			"rule", rejection.Violation.Rule,
			"reason", rejection.Violation.Reason,
		)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Mutation rejected",
			"details": rejection.Violation.Detail,
			"rejection": gin.H{
				"rule":   rejection.Violation.Rule,
				"field":  rejection.Violation.Field,
				"reason": rejection.Violation.Reason,
			},
		})
	case errors.Is(err, gateway.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   fmt.Sprintf("%s not found", kind),
			"details": err.Error(),
		})
	case errors.Is(err, gateway.ErrDeleteNotSupported):
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":   "Deletes are not supported",
			"details": "rows are never deleted; submit an update instead",
		})
	case errors.Is(err, gateway.ErrMissingID),
		errors.Is(err, gateway.ErrImmutableID),
		errors.Is(err, gateway.ErrNoFields),
		errors.Is(err, entity.ErrUnknownField),
		errors.Is(err, entity.ErrInvalidValue):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mutation", "details": err.Error()})
	default:
		h.metrics.Failed(ctx, kind, op)
		log.Error("Mutation failed", "kind", kind, "op", op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   fmt.Sprintf("Failed to %s %s", op, kind),
			"details": err.Error(),
		})
	}
}

// parseIDParam extracts the row id path parameter.
func (h *Handler) parseIDParam(c *gin.Context) (int64, bool) {
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

// decodeBody reads the request payload with json.Number so numeric
// field values keep their exact digits.
func (h *Handler) decodeBody(c *gin.Context) (map[string]any, bool) {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.UseNumber()
	var body map[string]any
	if err := decoder.Decode(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return nil, false
	}
	return body, true
}

func actor(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader("X-Actor")); v != "" {
		return v
	}
	return defaultActor
}

// normalizeBody converts feed-shaped string values into canonical form
// before the gateway's own coercion. Non-string values and unknown
// names pass through untouched so the gateway reports them.
func normalizeBody(def *entity.Def, body map[string]any) (entity.Fields, string) {
	fields := make(entity.Fields, len(body))
	for name, value := range body {
		fd, known := def.Field(name)
		if !known && name == def.IDColumn {
			fd, known = def.IDField(), true
		}
		raw, isString := value.(string)
		if !known || !isString {
			fields[name] = value
			continue
		}
		normalized, problem := normalizeCell(fd, raw)
		if problem != "" {
			return nil, problem
		}
		fields[name] = normalized
	}
	return fields, ""
}

// normalizeCell interprets one raw string the way the feed pipeline
// does: blank means absent, and dates and whole numbers must match
// their expected shapes.
func normalizeCell(fd entity.FieldDef, raw string) (any, string) {
	if normalize.NullableText(raw).Class == normalize.Absent {
		return nil, ""
	}
	switch fd.Kind {
	case entity.FieldDate:
		n := normalize.Date(strings.TrimSpace(raw))
		if n.Class != normalize.Parsed {
			return nil, fmt.Sprintf("%s is not a recognized date", fd.Name)
		}
		return n.Value, ""
	case entity.FieldInt, entity.FieldRef:
		n := normalize.Rating(strings.TrimSpace(raw))
		if n.Class != normalize.Parsed {
			return nil, fmt.Sprintf("%s is not a whole number", fd.Name)
		}
		return n.Value, ""
	case entity.FieldDecimal:
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Sprintf("%s is not a number", fd.Name)
		}
		return d, ""
	default:
		return raw, ""
	}
}

// renderState flattens committed field values into their canonical
// string forms for the response payload.
func renderState(state entity.Fields) map[string]any {
	rendered := make(map[string]any, len(state))
	for name, value := range state {
		if value == nil {
			rendered[name] = nil
			continue
		}
		rendered[name] = entity.Render(value)
	}
	return rendered
}
