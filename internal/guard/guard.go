// Package guard decides whether a session may open a client route and where
// to send it otherwise.
package guard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
)

const (
	RouteHome          = "home"
	RouteAuth          = "auth"
	RouteVerifyEmail   = "verify-email"
	RouteResetPassword = "reset-password"
	RouteDashboard     = "dashboard"
	RoutePayment       = "payment"
	RouteAdmin         = "admin"
)

var ErrUnknownRoute = errors.New("unknown route")

type Requirements struct {
	Auth     bool `json:"requires_auth"`
	Guest    bool `json:"requires_guest"`
	Admin    bool `json:"requires_admin"`
	Approved bool `json:"requires_approved"`
}

type Route struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Requirements `json:"requirements"`
}

var routes = []Route{
	{Name: RouteHome, Path: "/"},
	{Name: RouteAuth, Path: "/auth", Requirements: Requirements{Guest: true}},
	{Name: RouteVerifyEmail, Path: "/verify-email", Requirements: Requirements{Guest: true}},
	{Name: RouteResetPassword, Path: "/reset-password", Requirements: Requirements{Guest: true}},
	{Name: RouteDashboard, Path: "/dashboard", Requirements: Requirements{Auth: true}},
	{Name: RoutePayment, Path: "/payment", Requirements: Requirements{Auth: true, Approved: true}},
	{Name: RouteAdmin, Path: "/admin", Requirements: Requirements{Auth: true, Admin: true}},
}

// Lookup finds a route by name or by path.
func Lookup(nameOrPath string) (Route, bool) {
	for _, r := range routes {
		if r.Name == nameOrPath || r.Path == nameOrPath {
			return r, true
		}
	}
	return Route{}, false
}

func Routes() []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}

type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allow: true}
}

func redirect(route, reason string) Decision {
	r, _ := Lookup(route)
	return Decision{Redirect: r.Path, Reason: reason}
}

type Guard struct {
	accounts account.Repository
	cache    *account.Cache
	log      *zap.Logger
}

func NewGuard(accounts account.Repository, cache *account.Cache, log *zap.Logger) *Guard {
	return &Guard{accounts: accounts, cache: cache, log: log.Named("guard")}
}

// Decide evaluates route for the session owned by accountID; an empty id is
// an anonymous visitor. Cached accounts serve ordinary checks, admin checks
// always read the store.
func (g *Guard) Decide(ctx context.Context, nameOrPath, accountID string) (Decision, error) {
	route, ok := Lookup(nameOrPath)
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownRoute, nameOrPath)
	}
	req := route.Requirements

	if accountID == "" {
		if req.Auth || req.Admin || req.Approved {
			return redirect(RouteAuth, "authentication required"), nil
		}
		return allow(), nil
	}

	if req.Guest {
		return redirect(RouteDashboard, "already signed in"), nil
	}
	if !req.Auth && !req.Admin && !req.Approved {
		return allow(), nil
	}

	acc, err := g.load(ctx, accountID, req.Admin)
	if errors.Is(err, account.ErrAccountNotFound) {
		return redirect(RouteAuth, "account not found"), nil
	}
	if err != nil {
		return Decision{}, err
	}

	switch {
	case !acc.EmailVerified && !acc.HasLegacyPassword():
		return redirect(RouteVerifyEmail, "email not verified"), nil
	case req.Approved && acc.Status != account.StatusApproved && acc.Status != account.StatusPaid:
		return redirect(RouteDashboard, "application not approved"), nil
	case req.Admin && !acc.IsAdmin:
		g.log.Warn("non-admin attempted admin route", zap.String("account_id", acc.ID))
		return redirect(RouteDashboard, "admin only"), nil
	}
	return allow(), nil
}

func (g *Guard) load(ctx context.Context, accountID string, fresh bool) (*account.Account, error) {
	if !fresh {
		if acc, ok := g.cache.Get(accountID); ok {
			return acc, nil
		}
	}
	acc, err := g.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	g.cache.Put(acc)
	return acc, nil
}
