package auth

import (
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/api"
	"github.com/elskow/tourfurr/internal/captcha"
	"github.com/elskow/tourfurr/internal/config"
	"github.com/elskow/tourfurr/internal/identity"
	"github.com/elskow/tourfurr/internal/security"
)

type Handler struct {
	service  *Service
	sessions *identity.Middleware
	captcha  *captcha.Verifier
	csrf     *security.CSRFManager
	config   *config.AppConfig
	log      *zap.Logger
}

func NewHandler(
	service *Service,
	sessions *identity.Middleware,
	verifier *captcha.Verifier,
	csrf *security.CSRFManager,
	cfg *config.AppConfig,
	log *zap.Logger,
) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		captcha:  verifier,
		csrf:     csrf,
		config:   cfg,
		log:      log.Named("auth.http"),
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	human := h.captcha.Middleware()
	csrf := h.csrf.Middleware(h.config.Auth.CSRFEnabled)

	r.GET(api.CSRF, h.csrf.Handler)

	r.POST(api.AuthRegister, human, csrf, h.Register)
	r.POST(api.AuthVerify, h.Verify)
	r.POST(api.AuthResend, h.Resend)
	r.POST(api.AuthLogin, human, csrf, h.Login)
	r.POST(api.AuthLogout, h.sessions.RequireSession(), h.Logout)
	r.GET(api.AuthCheckEmail, h.CheckEmail)
	r.GET(api.AuthCheckNickname, h.CheckNickname)
	r.GET(api.AuthGrace, h.GracePeriod)
	r.POST(api.AuthPasswordReset, human, h.RequestPasswordReset)
	r.POST(api.AuthPasswordVerify, h.ConfirmPasswordReset)
	r.POST(api.AuthPasswordUpdate, h.CompletePasswordReset)

	me := r.Group(api.Me, h.sessions.RequireSession())
	me.GET("", h.Me)
	me.PATCH("", h.UpdateProfile)
	me.DELETE("", h.DeleteAccount)
	r.PUT(api.MeAvatar, h.sessions.RequireSession(), h.ReplaceAvatar)
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type codeRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type passwordUpdateRequest struct {
	Email    string `json:"email" binding:"required"`
	Code     string `json:"code" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusCreated, gin.H{
		"data":    result,
		"message": "Check your email for the verification code",
	})
}

func (h *Handler) Verify(c *gin.Context) {
	var req codeRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.service.Verify(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"data": result, "message": "Email confirmed"})
}

func (h *Handler) Resend(c *gin.Context) {
	var req emailRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.service.ResendCode(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"message": "If the account is awaiting confirmation, a new code is on its way"})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.setSessionCookie(c, result.Session.AccessToken, result.Session.ExpiresAt)
	api.OK(c, http.StatusOK, gin.H{"data": result})
}

func (h *Handler) Logout(c *gin.Context) {
	accountID, err := identity.SubjectFromContext(c.Request.Context())
	if err != nil {
		h.fail(c, &Error{Kind: KindAuth, Message: "Authentication required"})
		return
	}
	h.service.Logout(c.Request.Context(), accountID)
	h.setSessionCookie(c, "", time.Time{})
	api.OK(c, http.StatusOK, nil)
}

func (h *Handler) CheckEmail(c *gin.Context) {
	available, err := h.service.CheckEmailAvailable(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"available": available})
}

func (h *Handler) CheckNickname(c *gin.Context) {
	available, err := h.service.CheckNicknameAvailable(c.Request.Context(), c.Query("nickname"))
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"available": available})
}

func (h *Handler) GracePeriod(c *gin.Context) {
	status, err := h.service.GracePeriod(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"data": status})
}

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req emailRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.service.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"message": "If the account exists, a reset code has been sent"})
}

func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var req codeRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.service.ConfirmPasswordReset(c.Request.Context(), req.Email, req.Code); err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"message": "Code confirmed"})
}

func (h *Handler) CompletePasswordReset(c *gin.Context) {
	var req passwordUpdateRequest
	if !h.bind(c, &req) {
		return
	}
	err := h.service.CompletePasswordReset(c.Request.Context(), req.Email, req.Code, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"message": "Password updated"})
}

func (h *Handler) Me(c *gin.Context) {
	profile, err := h.service.Profile(c.Request.Context(), c.GetString(string(identity.SubjectContextKey)))
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"data": profile})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var update account.ProfileUpdate
	if !h.bind(c, &update) {
		return
	}
	profile, err := h.service.UpdateProfile(c.Request.Context(), c.GetString(string(identity.SubjectContextKey)), update)
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"data": profile})
}

func (h *Handler) ReplaceAvatar(c *gin.Context) {
	limit := h.service.avatars.MaxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+(64<<10))

	file, err := c.FormFile("avatar")
	if err != nil {
		h.fail(c, validationError("avatar", "Choose a file to upload"))
		return
	}
	if file.Size > limit {
		h.fail(c, validationError("avatar", "The file is too large"))
		return
	}
	f, err := file.Open()
	if err != nil {
		h.fail(c, infrastructureError(err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		h.fail(c, infrastructureError(err))
		return
	}

	profile, err := h.service.ReplaceAvatar(c.Request.Context(), c.GetString(string(identity.SubjectContextKey)), data)
	if err != nil {
		h.fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"data": profile})
}

func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.service.DeleteAccount(c.Request.Context(), c.GetString(string(identity.SubjectContextKey))); err != nil {
		h.fail(c, err)
		return
	}
	h.setSessionCookie(c, "", time.Time{})
	api.OK(c, http.StatusOK, gin.H{"message": "Account deleted"})
}

func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		api.Fail(c, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}
	return true
}

// fail renders err in the shared envelope. Internal causes are logged, never
// sent to the client.
func (h *Handler) fail(c *gin.Context, err error) {
	e, ok := AsError(err)
	if !ok {
		e = infrastructureError(err)
	}
	if e.Kind == KindInfrastructure {
		h.log.Error("request failed",
			zap.String("request_id", api.RequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(e.Err))
	}

	extra := gin.H{}
	if e.Field != "" {
		extra["field"] = e.Field
	}
	if e.RetryAfter > 0 {
		seconds := int(math.Ceil(e.RetryAfter.Seconds()))
		extra["retryAfter"] = seconds
		c.Header("Retry-After", strconv.Itoa(seconds))
	}
	if len(e.Feedback) > 0 {
		extra["feedback"] = e.Feedback
	}
	if e.NeedsVerification {
		extra["needsVerification"] = true
	}
	if e.Kind == KindVerificationMismatch {
		extra["attemptsRemaining"] = e.Remaining
	}
	api.Fail(c, e.HTTPStatus(), e.Message, extra)
}

// setSessionCookie mirrors the bearer token into an HttpOnly cookie. An empty
// token clears it.
func (h *Handler) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	name := h.config.Auth.CookieName
	if name == "" {
		return
	}
	maxAge := -1
	if token != "" {
		maxAge = int(time.Until(expiresAt).Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, token, maxAge, "/", "", h.config.Env == "production", true)
}
