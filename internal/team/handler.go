package team

import (
	"errors"
	"net/http"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/api"
	"github.com/elskow/tourfurr/internal/identity"
)

const rosterCacheTTL = 30 * time.Second

type Handler struct {
	service  *Service
	sessions *identity.Middleware
	store    persist.CacheStore
	log      *zap.Logger
}

func NewHandler(service *Service, sessions *identity.Middleware, log *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		store:    persist.NewMemoryStore(time.Minute),
		log:      log.Named("team.http"),
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET(api.Teams, cache.CacheByRequestURI(h.store, rosterCacheTTL), h.List)
	r.GET(api.TeamMembers, h.sessions.RequireSession(), h.Members)
	r.POST(api.TeamSelect, h.sessions.RequireSession(), h.Select)
}

func (h *Handler) List(c *gin.Context) {
	teams, err := h.service.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"data": teams})
}

func (h *Handler) Members(c *gin.Context) {
	members, err := h.service.Members(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"data": members, "count": len(members)})
}

type selectRequest struct {
	TeamID string `json:"team_id" binding:"required"`
}

func (h *Handler) Select(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	accountID := c.GetString(string(identity.SubjectContextKey))
	team, err := h.service.Select(c.Request.Context(), accountID, req.TeamID)
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"data": team})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTeamNotFound):
		api.Fail(c, http.StatusNotFound, "Team not found", nil)
	case errors.Is(err, account.ErrAccountNotFound):
		api.Fail(c, http.StatusNotFound, "Account not found", nil)
	case errors.Is(err, ErrNotEligible):
		api.Fail(c, http.StatusForbidden, "Only approved participants can choose a team", nil)
	default:
		h.log.Error("team request failed", zap.String("request_id", api.RequestID(c)), zap.Error(err))
		api.Fail(c, http.StatusInternalServerError, "Something went wrong. Please try again later", nil)
	}
}
