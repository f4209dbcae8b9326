package guard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/api"
	"github.com/elskow/tourfurr/internal/identity"
)

type Handler struct {
	guard    *Guard
	sessions *identity.Middleware
	log      *zap.Logger
}

func NewHandler(guard *Guard, sessions *identity.Middleware, log *zap.Logger) *Handler {
	return &Handler{guard: guard, sessions: sessions, log: log}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST(api.NavigationCheck, h.sessions.OptionalSession(), h.Check)
}

type checkRequest struct {
	Route string `json:"route" binding:"required"`
}

func (h *Handler) Check(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	decision, err := h.guard.Decide(c.Request.Context(), req.Route, c.GetString(string(identity.SubjectContextKey)))
	if err != nil {
		if errors.Is(err, ErrUnknownRoute) {
			api.Fail(c, http.StatusNotFound, "Unknown route", nil)
			return
		}
		h.log.Error("navigation check failed", zap.Error(err))
		api.Fail(c, http.StatusInternalServerError, "Something went wrong. Please try again later", nil)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"data": decision})
}

// Require gates a server route group with the same rules as route. It must
// run after a session middleware.
func (g *Guard) Require(route string) gin.HandlerFunc {
	if _, ok := Lookup(route); !ok {
		panic("guard: unknown route " + route)
	}
	return func(c *gin.Context) {
		decision, err := g.Decide(c.Request.Context(), route, c.GetString(string(identity.SubjectContextKey)))
		if err != nil {
			g.log.Error("route guard failed", zap.String("route", route), zap.Error(err))
			api.Fail(c, http.StatusInternalServerError, "Something went wrong. Please try again later", nil)
			return
		}
		if !decision.Allow {
			status := http.StatusForbidden
			if decision.Redirect == "/auth" {
				status = http.StatusUnauthorized
			}
			api.Fail(c, status, "Access denied", gin.H{"redirect": decision.Redirect, "reason": decision.Reason})
			return
		}
		c.Next()
	}
}
