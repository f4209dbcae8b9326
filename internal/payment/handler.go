package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/api"
	"github.com/elskow/tourfurr/internal/guard"
	"github.com/elskow/tourfurr/internal/identity"
)

type Handler struct {
	service  *Service
	sessions *identity.Middleware
	guard    *guard.Guard
	log      *zap.Logger
}

func NewHandler(service *Service, sessions *identity.Middleware, g *guard.Guard, log *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		guard:    g,
		log:      log.Named("payment.http"),
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST(api.Payments, h.sessions.RequireSession(), h.guard.Require(guard.RoutePayment), h.Create)
	r.POST(api.PaymentWebhook, h.Webhook)
}

type createPaymentRequest struct {
	ReturnURL string `json:"return_url"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		api.Fail(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	accountID := c.GetString(string(identity.SubjectContextKey))
	result, err := h.service.CreatePayment(c.Request.Context(), accountID, req.ReturnURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"data": result})
}

// Webhook always answers 200 once the notification is applied or ignored so
// the gateway stops redelivering it.
func (h *Handler) Webhook(c *gin.Context) {
	var n Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		api.Fail(c, http.StatusBadRequest, ErrInvalidEvent.Error(), nil)
		return
	}
	if err := h.service.HandleWebhook(c.Request.Context(), n); err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, nil)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidReturnURL), errors.Is(err, ErrInvalidEvent), errors.Is(err, ErrEventMismatch):
		api.Fail(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, account.ErrAccountNotFound):
		api.Fail(c, http.StatusNotFound, "Application not found", nil)
	case errors.Is(err, ErrNotApproved):
		api.Fail(c, http.StatusForbidden, "Application is not approved for payment", nil)
	case errors.Is(err, ErrAlreadyPaid):
		api.Fail(c, http.StatusConflict, "Payment already completed", nil)
	case errors.Is(err, ErrNotConfigured):
		h.log.Error("payment gateway not configured")
		api.Fail(c, http.StatusServiceUnavailable, "Payment service not configured", nil)
	case errors.Is(err, ErrGateway):
		h.log.Error("payment gateway failed", zap.String("request_id", api.RequestID(c)), zap.Error(err))
		api.Fail(c, http.StatusBadGateway, "Failed to create payment", nil)
	default:
		h.log.Error("payment request failed", zap.String("request_id", api.RequestID(c)), zap.Error(err))
		api.Fail(c, http.StatusInternalServerError, "Something went wrong. Please try again later", nil)
	}
}
