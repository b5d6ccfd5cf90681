package api

import (
	stdhttp "net/http"

	intconfig "transitbook/internal/config"
	h "transitbook/internal/http/handlers"
	"transitbook/internal/http/middleware"
	"transitbook/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(env intconfig.Env, hd *h.Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.Logger().Warn("failed to set trusted proxies", zap.Error(err))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/routes", h.Routes)

		me := api.Group("/me", middleware.RequireAuth(env.AuthJWTSecret))
		me.GET("/profile", hd.GetProfile)
		me.GET("/dashboard", hd.GetDashboard)
		me.POST("/points/redeem", hd.RedeemPoints)

		bookings := me.Group("/bookings")
		bookings.GET("", hd.ListBookings)
		bookings.POST("", hd.CreateBooking)
		bookings.GET("/:id", hd.GetBooking)
		bookings.PATCH("/:id", hd.UpdateBooking)
		bookings.DELETE("/:id", hd.DeleteBooking)
		bookings.POST("/:id/cancel", hd.CancelBooking)
		bookings.POST("/:id/confirm", hd.ConfirmBooking)
		bookings.GET("/:id/e-ticket", hd.BookingETicket)

		me.GET("/activities", hd.ListActivities)
		me.POST("/activities", hd.CreateActivity)
		me.GET("/transactions", hd.ListTransactions)
		me.POST("/transactions", hd.CreateTransaction)

		me.GET("/realtime/:collection", hd.Realtime)
		me.GET("/events/:collection", hd.ListEvents)

		admin := api.Group("/admin", middleware.RequireAuth(env.AuthJWTSecret), middleware.RequireRoles("admin"))
		admin.POST("/points", hd.AdjustPoints)
	}

	h.SetRouter(r)
	return r
}
