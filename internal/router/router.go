package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/styledecor/internal/config"
	"github.com/iliyamo/styledecor/internal/handler"
	"github.com/iliyamo/styledecor/internal/middleware"
	"github.com/iliyamo/styledecor/internal/model"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth       *handler.AuthHandler
	Bookings   *handler.BookingHandler
	Decorators *handler.DecoratorHandler
	Payments   *handler.PaymentHandler
	Catalog    *handler.CatalogHandler
	Admin      *handler.AdminHandler
}

// Deps carries what the route groups need besides handlers.  Redis may be
// nil, in which case rate limiting and caching are pass-throughs.
type Deps struct {
	Cfg   config.Config
	Redis *redis.Client
	Roles middleware.RoleLookup
}

// Register mounts every route group on e.
func Register(e *echo.Echo, h Handlers, d Deps) {
	RegisterRoutes(e)
	RegisterPublic(e, h, d)
	RegisterClient(e, h, d)
	RegisterDecorator(e, h, d)
	RegisterAdmin(e, h, d)
}

func (d Deps) limit(scope string) echo.MiddlewareFunc {
	return middleware.RateLimit(d.Cfg.RateLimit, d.Redis, scope)
}

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers unauthenticated endpoints.  Catalog and roster
// reads go through the response cache.  The webhook has its own rate budget.
func RegisterPublic(e *echo.Echo, h Handlers, d Deps) {
	cache := middleware.NewRedisCache(d.Cfg.Cache, d.Redis)
	g := e.Group("/v1")
	browse := d.limit(config.ScopeBrowse)

	g.GET("/services", h.Catalog.ListServices, browse, cache)
	g.GET("/services/:id", h.Catalog.GetService, browse, cache)
	g.GET("/service-centers", h.Catalog.ListCenters, browse, cache)
	g.GET("/decorators", h.Decorators.ListRoster, browse, cache)
	g.GET("/decorators/:id", h.Decorators.Get, browse)

	// Gateway notifications carry no bearer token; the charge is re-read
	// from the gateway before anything is written.
	g.POST("/payments/webhook", h.Payments.Webhook, d.limit(config.ScopeWebhook))

	if !d.Cfg.IsProd() {
		g.POST("/auth/dev-token", h.Auth.DevToken, browse)
	}
}

// RegisterClient registers endpoints open to any signed-in principal.
// Self-scoped endpoints check the supplied email against the principal.
func RegisterClient(e *echo.Echo, h Handlers, d Deps) {
	g := e.Group("/v1", middleware.JWTAuth(d.Cfg.JWTSecret), d.limit(config.ScopeAccount))

	g.POST("/users/sign-in", h.Auth.SignIn)
	g.GET("/users/me", h.Auth.Me)
	g.GET("/users/:email/role", h.Auth.Role)

	g.POST("/bookings", h.Bookings.Create)
	g.GET("/bookings", h.Bookings.ListMine)
	g.GET("/bookings/:id", h.Bookings.Get)

	g.POST("/decorators/apply", h.Decorators.Apply, middleware.PurgeCache(d.Cfg.Cache, d.Redis))

	g.POST("/payments/checkout", h.Payments.Checkout)
	g.POST("/payments/confirm", h.Payments.Confirm)
	g.GET("/payments", h.Payments.History)
}

// RegisterDecorator registers the approved decorator's workspace.  Status
// changes, rejections and availability edits move the decorator in or out
// of the bookable roster, so successful writes purge the response cache.
func RegisterDecorator(e *echo.Echo, h Handlers, d Deps) {
	g := e.Group("/v1/decorator",
		middleware.JWTAuth(d.Cfg.JWTSecret),
		middleware.RequireRole(d.Roles, model.RoleDecorator),
		d.limit(config.ScopeWorkspace),
		middleware.PurgeCache(d.Cfg.Cache, d.Redis),
	)
	g.GET("/me", h.Decorators.Me)
	g.GET("/bookings", h.Decorators.MyBookings)
	g.PATCH("/bookings/:id/status", h.Decorators.AdvanceStatus)
	g.PATCH("/bookings/:id/reject", h.Decorators.Reject)
	g.PATCH("/availability", h.Decorators.SetMyAvailability)
	g.GET("/earnings", h.Decorators.MyEarnings)
}

// RegisterAdmin registers administrative endpoints.  Successful writes purge
// the response cache so catalog and roster edits show up immediately.
func RegisterAdmin(e *echo.Echo, h Handlers, d Deps) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(d.Cfg.JWTSecret),
		middleware.RequireRole(d.Roles, model.RoleAdmin),
		d.limit(config.ScopeAdmin),
		middleware.PurgeCache(d.Cfg.Cache, d.Redis),
	)

	g.GET("/users", h.Auth.ListUsers)
	g.PATCH("/users/:email/role", h.Auth.SetRole)

	g.GET("/decorators/applications", h.Decorators.Applications)
	g.PATCH("/decorators/:id/review", h.Decorators.Review)
	g.PATCH("/decorators/:id/availability", h.Decorators.SetAvailability)
	g.GET("/decorators/:id/earnings", h.Decorators.Earnings)
	g.PATCH("/earnings/:bookingId/payout", h.Decorators.MarkEarningPaid)

	g.GET("/bookings", h.Bookings.ListAll)
	g.PATCH("/bookings/:id/assign", h.Bookings.Assign)
	g.PATCH("/bookings/:id/status", h.Bookings.UpdateStatus)
	g.DELETE("/bookings/:id", h.Bookings.Delete)

	g.GET("/payments", h.Payments.ListAll)

	g.POST("/services", h.Catalog.CreateService)
	g.PUT("/services/:id", h.Catalog.UpdateService)
	g.DELETE("/services/:id", h.Catalog.DeleteService)
	g.POST("/service-centers", h.Catalog.CreateCenter)
	g.DELETE("/service-centers/:id", h.Catalog.DeleteCenter)

	g.POST("/reconcile", h.Admin.Reconcile)
}
