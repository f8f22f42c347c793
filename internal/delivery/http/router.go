package http

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"tradeledger/internal/domain"
	"tradeledger/internal/metrics"
	custommiddleware "tradeledger/internal/middleware"
)

// RouterConfig holds all dependencies for routing
type RouterConfig struct {
	Live        *TradingHandler
	Demo        *TradingHandler
	Leaderboard *LeaderboardHandler
	Hub         *WSHub
	JWTSecret   string
	Logger      *zap.Logger
}

// quietPath reports high-frequency polling endpoints that are not logged
func quietPath(path string) bool {
	if path == "/health" {
		return true
	}
	return strings.HasSuffix(path, "/tick") || strings.Contains(path, "/quotes/")
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(e *echo.Echo, config *RouterConfig) {
	logger := config.Logger

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return quietPath(c.Request().URL.Path)
		},
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				logger.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			metrics.ObserveHTTP(c.Request().Method, c.Path(), status, time.Since(start))
			return err
		}
	})

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return SuccessResponse(c, map[string]interface{}{
			"status":    "healthy",
			"service":   "tradeledger-api",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Realtime quotes and trade events
	if config.Hub != nil {
		e.GET("/ws", config.Hub.HandleWS)
	}

	api := e.Group("/api")
	auth := custommiddleware.NewAuthMiddleware(config.JWTSecret)

	if config.Leaderboard != nil {
		api.GET("/leaderboard/:league_id", config.Leaderboard.GetLeaderboard)
	}

	for _, h := range []*TradingHandler{config.Live, config.Demo} {
		if h == nil {
			continue
		}
		registerTradingRoutes(api.Group("/"+string(h.Mode())), h, auth)
	}
}

func registerTradingRoutes(g *echo.Group, h *TradingHandler, auth echo.MiddlewareFunc) {
	// Quotes are public
	g.GET("/quotes/:symbol", h.GetQuote)

	user := g.Group("", auth)
	{
		user.GET("/portfolio", h.GetPortfolio)
		user.POST("/portfolio", h.EnsurePortfolio)
		user.GET("/trades", h.ListTrades)
		user.POST("/trades", h.OpenTrade)
		user.POST("/trades/close-all", h.CloseAllTrades)
		user.POST("/trades/:id/close", h.CloseTrade)
		user.POST("/trades/:id/cancel", h.CancelTrade)
		user.POST("/tick", h.Tick)
	}
	if h.Mode() == domain.ModeDemo {
		user.POST("/portfolio/reset", h.ResetPortfolio)
	}
}
