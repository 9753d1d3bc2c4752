package router

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"league-backend/internal/config"
	"league-backend/internal/handlers"
	"league-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// corsMiddleware CORS middleware
// Priority: Environment Variable > YAML Config > Default (*)
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowedOrigins := []string{"*"}
		allowCredentials := true
		maxAge := 3600

		if envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); envOrigins != "" {
			allowedOrigins = allowedOrigins[:0]
			for _, o := range strings.Split(envOrigins, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		} else if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
			if config.AppConfig.CORS.MaxAge > 0 {
				maxAge = config.AppConfig.CORS.MaxAge
			}
		}

		if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, allowedOrigin := range allowedOrigins {
				if strings.TrimSpace(allowedOrigin) == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetupRouter wires middleware and routes onto a gin engine.
func SetupRouter(
	authHandler *handlers.AuthHandler,
	registryHandler *handlers.RegistryHandler,
	leagueHandler *handlers.LeagueHandler,
	oracleHandler *handlers.OracleHandler,
) *gin.Engine {
	r := gin.Default()
	r.Use(corsMiddleware())

	logger := logrus.New()
	var allowedIPs []string
	if config.AppConfig != nil && len(config.AppConfig.Admin.AllowedIPs) > 0 {
		allowedIPs = config.AppConfig.Admin.AllowedIPs
		logger.WithField("count", len(allowedIPs)).Info("Admin API IP whitelist configured")
	}
	localhostOnly := middleware.NewLocalhostOnly(logger, allowedIPs)
	auth := middleware.NewAuthMiddleware(logger)

	// ============ Health ============
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "league-backend",
		})
	})

	// ============ Prometheus Metrics ============
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ API Routes ============
	api := r.Group("/api")
	{
		// authentication
		api.POST("/auth/nonce", authHandler.GenerateNonceHandler)
		api.POST("/auth/login", authHandler.AuthenticateHandler)

		// catalog (public reads)
		api.GET("/leagues", registryHandler.ListLeaguesHandler)
		api.GET("/leagues/joinable", registryHandler.ListJoinableHandler)
		api.GET("/leagues/:id", leagueHandler.GetLeagueHandler)
		api.GET("/leagues/:id/participants", leagueHandler.GetParticipantsHandler)
		api.GET("/leagues/:id/participants/:address", leagueHandler.GetParticipantHandler)
		api.GET("/leagues/:id/prizes", leagueHandler.GetPrizeBreakdownHandler)

		// lifecycle mutations (authenticated wallet)
		authed := api.Group("", auth.RequireAuth())
		{
			authed.POST("/leagues", registryHandler.CreateLeagueHandler)
			authed.POST("/leagues/:id/join", leagueHandler.JoinHandler)
			authed.POST("/leagues/:id/finalize", leagueHandler.FinalizeHandler)
			authed.POST("/leagues/:id/claim", leagueHandler.ClaimHandler)
			authed.POST("/leagues/:id/emergency-withdraw", leagueHandler.EmergencyWithdrawHandler)
			authed.POST("/leagues/:id/pause", leagueHandler.PauseHandler)
			authed.POST("/leagues/:id/unpause", leagueHandler.UnpauseHandler)
			authed.POST("/leagues/:id/scores", leagueHandler.IngestScoresHandler)
			authed.POST("/leagues/:id/request-update", oracleHandler.RequestUpdateHandler)

			// oracle configuration - authenticated AND IP-restricted
			oracleConfig := authed.Group("/oracle/config", localhostOnly.Restrict())
			{
				oracleConfig.PUT("/source", oracleHandler.UpdateSourceHandler)
				oracleConfig.PUT("/query-template", oracleHandler.UpdateQueryTemplateHandler)
				oracleConfig.PUT("/request-budget", oracleHandler.UpdateRequestBudgetHandler)
				oracleConfig.PUT("/routing-id", oracleHandler.UpdateRoutingIDHandler)
			}
		}

		// provider callback - machine peer, IP-restricted
		api.POST("/oracle/fulfill", localhostOnly.Restrict(), oracleHandler.FulfillHandler)
	}

	// ============ NoRoute handler for 404 ============
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "Endpoint not found",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}
