package admin

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/api"
	"github.com/elskow/tourfurr/internal/config"
	"github.com/elskow/tourfurr/internal/guard"
	"github.com/elskow/tourfurr/internal/identity"
)

const PINHeader = "X-Admin-Pin"

type Handler struct {
	service  *Service
	sessions *identity.Middleware
	guard    *guard.Guard
	config   *config.AuthConfig
	log      *zap.Logger
}

func NewHandler(
	service *Service,
	sessions *identity.Middleware,
	g *guard.Guard,
	cfg *config.AppConfig,
	log *zap.Logger,
) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		guard:    g,
		config:   &cfg.Auth,
		log:      log.Named("admin.http"),
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	chain := []gin.HandlerFunc{
		h.sessions.RequireSession(),
		h.guard.Require(guard.RouteAdmin),
		RequirePIN(h.config.AdminPIN),
	}
	r.GET(api.AdminApplications, append(chain, h.List)...)
	r.POST(api.AdminApplication, append(chain, h.Decide)...)
}

// RequirePIN checks the second admin factor. An unset PIN locks the admin
// routes entirely.
func RequirePIN(pin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(PINHeader)
		if pin == "" || subtle.ConstantTimeCompare([]byte(got), []byte(pin)) != 1 {
			api.Fail(c, http.StatusForbidden, "Invalid admin PIN", nil)
			return
		}
		c.Next()
	}
}

func (h *Handler) List(c *gin.Context) {
	profiles, err := h.service.ListApplications(c.Request.Context(), account.Status(c.Query("status")))
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"data": profiles, "count": len(profiles)})
}

type decisionRequest struct {
	Status account.Status `json:"status" binding:"required"`
}

func (h *Handler) Decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	result, err := h.service.Decide(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"data": result})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidDecision):
		api.Fail(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, account.ErrAccountNotFound):
		api.Fail(c, http.StatusNotFound, "Application not found", nil)
	case errors.Is(err, ErrNotVerified):
		api.Fail(c, http.StatusConflict, "The applicant has not confirmed their email", nil)
	case errors.Is(err, account.ErrInvalidTransition):
		api.Fail(c, http.StatusConflict, "The application has already been decided", nil)
	default:
		h.log.Error("admin request failed", zap.String("request_id", api.RequestID(c)), zap.Error(err))
		api.Fail(c, http.StatusInternalServerError, "Something went wrong. Please try again later", nil)
	}
}
