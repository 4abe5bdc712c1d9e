package router

import (
	"github.com/debtsettle/backend/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// SettlementHandlers bundles what the settlement API routes to
type SettlementHandlers struct {
	Health     *handler.HealthHandler
	Settlement *handler.SettlementHandler
	Payment    *handler.PaymentHandler
	// RequireAuth guards every state-changing endpoint
	RequireAuth gin.HandlerFunc
}

// SettlementGroups builds the route groups of the settlement API
func SettlementGroups(h SettlementHandlers) []*DomainGroup {
	auth := h.RequireAuth
	if auth == nil {
		auth = func(c *gin.Context) { c.Next() }
	}

	health := NewDomainGroup("health", "/health").
		GET("", h.Health.Check)

	customers := NewDomainGroup("customers", "/customers/:taxpayer_id").
		GET("/debts", h.Settlement.ListDebts).
		GET("/debts/export", h.Settlement.ExportDebts).
		GET("/summary", h.Settlement.Summary).
		GET("/instruments", h.Settlement.ListInstruments)

	instruments := NewDomainGroup("instruments", "/instruments").
		POST("", auth, h.Settlement.Negotiate).
		GET("/:id", h.Settlement.GetInstrument).
		POST("/:id/cancel", auth, h.Settlement.Cancel)

	payments := NewDomainGroup("payments", "/payments").
		POST("", auth, h.Payment.Register).
		GET("/:id", h.Payment.Get).
		POST("/:id/approve", auth, h.Payment.Approve).
		POST("/:id/reject", auth, h.Payment.Reject).
		POST("/:id/cancel", auth, h.Payment.Cancel)

	return []*DomainGroup{health, customers, instruments, payments}
}

// RegisterSettlement registers every settlement group on the router
func (r *Router) RegisterSettlement(h SettlementHandlers) []RouteInfo {
	base := r.Base()
	var routes []RouteInfo
	for _, g := range SettlementGroups(h) {
		r.Register(g)
		routes = append(routes, g.Routes(base)...)
	}
	return routes
}
