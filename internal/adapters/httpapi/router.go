package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type RouterParams struct {
	Handler *Handler
	// WebSocket is mounted at /ws when set
	WebSocket http.HandlerFunc
	Logger    zerolog.Logger
}

// NewRouter configures all Gin routes for the application
func NewRouter(params RouterParams) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger(params.Logger.With().Str("component", "http").Logger()))

	h := params.Handler

	router.GET("/health", h.Health)
	if params.WebSocket != nil {
		router.GET("/ws", gin.WrapF(params.WebSocket))
	}

	api := router.Group("/api")
	{
		auctions := api.Group("/auctions")
		auctions.POST("", h.CreateAuction)
		auctions.GET("", h.ListAuctions)
		auctions.GET("/:id", h.GetAuction)
		auctions.PUT("/:id", h.UpdateListing)
		auctions.POST("/:id/bids", h.PlaceBid)

		users := api.Group("/users")
		users.GET("/:id/bids", h.BidsByUser)

		admin := api.Group("/admin")
		admin.GET("/dashboard", h.Dashboard)
		admin.POST("/auctions/:id/close", h.CloseAuction)
		admin.POST("/auctions/:id/cancel", h.CancelAuction)
		admin.DELETE("/auctions/:id", h.DeleteAuction)
	}

	return router
}
