package router

import (
	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/reporting"
	"github.com/gin-gonic/gin"
)

// auditCollections maps URL path segments to catalog kinds for the
// per-entity audit listing.
var auditCollections = []struct {
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

// RegisterRoutes wires the read-side endpoints onto the API group.
func RegisterRoutes(apiBase *gin.RouterGroup, service *reporting.Service) {
	handler := NewHandler(service)
	apiBase.GET("/products/:id/price-history", handler.PriceHistory())
	for _, col := range auditCollections {
		apiBase.GET("/"+col.path+"/:id/audit", handler.AuditTrail(col.kind))
	}
	reports := apiBase.Group("/reports")
	{
		reports.GET("/customer-value", handler.CustomerValues())
		reports.GET("/loyalty-tiers", handler.LoyaltyTiers())
		reports.GET("/quality", handler.Quality())
	}
}
