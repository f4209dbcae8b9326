package cleanup

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/api"
	"github.com/elskow/tourfurr/internal/config"
)

type Handler struct {
	sweeper *Sweeper
	config  *config.CleanupConfig
	log     *zap.Logger
}

func NewHandler(sweeper *Sweeper, cfg *config.AppConfig, log *zap.Logger) *Handler {
	return &Handler{
		sweeper: sweeper,
		config:  &cfg.Cleanup,
		log:     log.Named("cleanup.http"),
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST(api.CleanupUnverified, RequireSecret(h.config.Secret), h.Run)
}

// RequireSecret admits requests bearing the cleanup secret. An empty secret
// disables the endpoint.
func RequireSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if secret == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			api.Fail(c, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		c.Next()
	}
}

func (h *Handler) Run(c *gin.Context) {
	ctx := c.Request.Context()
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	report, err := h.sweeper.Run(ctx, TriggerHTTP)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		api.Fail(c, http.StatusConflict, "Cleanup is already running", nil)
		return
	case err != nil:
		h.log.Error("cleanup request failed", zap.String("request_id", api.RequestID(c)), zap.Error(err))
		api.Fail(c, http.StatusInternalServerError, "Internal server error", nil)
		return
	}

	api.OK(c, http.StatusOK, gin.H{
		"message":       report.Message,
		"deleted":       report.Deleted,
		"deleted_users": report.DeletedUsers,
		"errors":        report.Errors,
		"codes_purged":  report.CodesPurged,
		"timestamp":     report.Timestamp,
	})
}
