package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/elskow/tourfurr/internal/admin"
	"github.com/elskow/tourfurr/internal/api"
	"github.com/elskow/tourfurr/internal/captcha"
	"github.com/elskow/tourfurr/internal/config"
	"github.com/elskow/tourfurr/internal/identity"
	"github.com/elskow/tourfurr/internal/ratelimit"
	"github.com/elskow/tourfurr/internal/security"
)

// RouteRegistrar mounts a package's handlers under the /api group.
type RouteRegistrar interface {
	RegisterRoutes(r gin.IRouter)
}

// NewRouter builds the gin engine with the shared middleware chain. health
// may be nil.
func NewRouter(
	cfg *config.AppConfig,
	log *zap.Logger,
	throttle *ratelimit.Throttle,
	health gin.HandlerFunc,
	routes ...RouteRegistrar,
) *gin.Engine {
	if cfg.Env == EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.MaxMultipartMemory = cfg.Storage.MaxAvatarBytes

	router.Use(
		cors.New(cors.Config{
			AllowOrigins: cfg.Server.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders: []string{
				"Origin", "Content-Type", "Accept", "Authorization",
				captcha.TokenHeader, security.CSRFHeader, admin.PINHeader, api.RequestIDHeader,
			},
			ExposeHeaders:    []string{"Content-Length", "Retry-After", api.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		ginzap.RecoveryWithZap(log, true),
		RequestID(),
		ginzap.GinzapWithConfig(log, &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == http.MethodOptions
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{zap.String("request_id", api.RequestID(c))}
				if v := c.GetString(string(identity.SubjectContextKey)); v != "" {
					fields = append(fields, zap.String("account_id", v))
				}
				return fields
			},
		}),
		throttle.Middleware(),
		BodyLimit(cfg.Server.MaxBodyBytes),
	)

	router.NoRoute(func(c *gin.Context) {
		api.Fail(c, http.StatusNotFound, "Not found", nil)
	})
	router.NoMethod(func(c *gin.Context) {
		api.Fail(c, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	group := router.Group(api.Prefix)
	if health != nil {
		group.GET(api.Health, health)
	}
	for _, r := range routes {
		r.RegisterRoutes(group)
	}

	return router
}

// RequestID tags every request with a KSUID, keeping a well-formed id sent by
// the client or proxy.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(api.RequestIDHeader)
		if _, err := ksuid.Parse(id); err != nil {
			id = ksuid.New().String()
		}
		c.Set(api.RequestIDKey, id)
		c.Header(api.RequestIDHeader, id)
		c.Next()
	}
}

// BodyLimit caps JSON request bodies. Multipart uploads carry their own
// limit.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil &&
			!strings.HasPrefix(c.ContentType(), "multipart/") {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
