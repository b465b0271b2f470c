// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"slotify/internal/bookings"
	"slotify/internal/catalog"
	"slotify/internal/clock"
	"slotify/internal/finalize"
	"slotify/internal/ledger"
	"slotify/internal/payments"
	"slotify/internal/pricing"
	"slotify/internal/session"
	"slotify/internal/shared/config"
	"slotify/internal/shared/database"
	"slotify/internal/shared/middleware"
	"slotify/internal/shared/utils/response"
	"slotify/pkg/cache"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config    *config.Config
	db        *database.DB
	ledger    ledger.Ledger
	clock     clock.Clock
	publisher finalize.Publisher
}

// NewRouter creates a new router instance. The ledger and publisher are
// built in main because their lifecycle outlives a request.
func NewRouter(cfg *config.Config, db *database.DB, ldg ledger.Ledger, clk clock.Clock, publisher finalize.Publisher) *Router {
	return &Router{
		config:    cfg,
		db:        db,
		ledger:    ldg,
		clock:     clk,
		publisher: publisher,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupAuthRoutes(api)

		cacheService := cache.NewService(r.db.Redis)

		catalogRepo := catalog.NewRepository(r.db.PostgreSQL)
		catalogService := catalog.NewService(catalogRepo, r.ledger, cacheService)
		catalog.SetupCatalogRoutes(api, catalog.NewController(catalogService))

		bookingRepo := bookings.NewRepository(r.db.PostgreSQL)
		bookingService := bookings.NewService(bookingRepo)
		bookings.SetupBookingRoutes(api, bookings.NewController(bookingService))

		gateway := payments.NewMockGateway()
		finalizer := finalize.NewFinalizer(r.ledger, gateway, bookingService, r.publisher, r.clock)

		pricer := pricing.NewEngine(r.config.Pricing.FeeRate, r.config.Pricing.TaxRate)
		manager := session.NewManager(session.NewStore(), catalogService, r.ledger, pricer, finalizer, r.clock, r.config.Hold.TTL)
		session.SetupSessionRoutes(api, session.NewController(manager))
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "slotify",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "slotify",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})
}

// setupAuthRoutes exposes guest-token minting. There are no accounts;
// a token just binds one browser to its sessions and bookings.
func (r *Router) setupAuthRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/guest", func(c *gin.Context) {
		shopperID, token, err := middleware.NewGuestToken(r.config)
		if err != nil {
			response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to mint guest token", nil, err.Error())
			return
		}
		response.RespondJSON(c, "success", http.StatusCreated, "Guest token issued", gin.H{
			"shopper_id": shopperID,
			"token":      token,
			"expires_in": int(r.config.JWT.JWTExpiresIn.Seconds()),
		}, nil)
	})
}
