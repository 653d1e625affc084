package router

import (
	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/gateway"
	"github.com/aethermart/dataplane/engine/infra/monitoring"
	"github.com/gin-gonic/gin"
)

// collections maps URL segments to the entity kinds they expose.
var collections = []struct {
	path string
	kind entity.Kind
}{
	{"categories", entity.KindCategory},
	{"suppliers", entity.KindSupplier},
	{"customers", entity.KindCustomer},
	{"products", entity.KindProduct},
	{"orders", entity.KindOrder},
	{"order-items", entity.KindOrderItem},
	{"reviews", entity.KindReview},
}

// RegisterRoutes registers the mutation routes for every collection.
func RegisterRoutes(apiBase *gin.RouterGroup, gw *gateway.Gateway, registry *entity.Registry) {
	RegisterRoutesWithMetrics(apiBase, gw, registry, nil)
}

// RegisterRoutesWithMetrics registers all mutation routes with gateway
// outcome instrumentation.
func RegisterRoutesWithMetrics(
	apiBase *gin.RouterGroup,
	gw *gateway.Gateway,
	registry *entity.Registry,
	metrics *monitoring.MutationMetrics,
) {
	handler := NewHandler(gw, registry, metrics)
	for _, col := range collections {
		group := apiBase.Group("/" + col.path)
		{
			group.POST("", handler.Create(col.kind))
			group.PATCH("/:id", handler.Update(col.kind))
			group.DELETE("/:id", handler.Delete(col.kind))
		}
	}
}
