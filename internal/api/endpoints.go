package api

// Route paths relative to the /api group.
const (
	Prefix = "/api"

	Health = "/health"
	CSRF   = "/csrf"

	AuthRegister       = "/auth/register"
	AuthVerify         = "/auth/verify"
	AuthResend         = "/auth/resend"
	AuthLogin          = "/auth/login"
	AuthLogout         = "/auth/logout"
	AuthCheckEmail     = "/auth/check-email"
	AuthCheckNickname  = "/auth/check-nickname"
	AuthGrace          = "/auth/grace"
	AuthPasswordReset  = "/auth/password/reset"
	AuthPasswordVerify = "/auth/password/confirm"
	AuthPasswordUpdate = "/auth/password/update"

	Me       = "/me"
	MeAvatar = "/me/avatar"

	Teams       = "/teams"
	TeamMembers = "/teams/:id/members"
	TeamSelect  = "/teams/select"

	Payments       = "/payments"
	PaymentWebhook = "/payments/webhook"

	AdminApplications = "/admin/applications"
	AdminApplication  = "/admin/applications/:id"

	CleanupUnverified = "/cleanup/unverified"

	NavigationCheck = "/navigation/check"
)
