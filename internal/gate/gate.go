// Package gate decides, per page load, whether a visitor sees the page, is
// sent to the login form, or is denied a guarded section.
package gate

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ashureev/docgate/internal/config"
	"github.com/ashureev/docgate/internal/domain"
	"github.com/ashureev/docgate/internal/observability"
	"github.com/ashureev/docgate/internal/session"
)

// Sessions is the durable half of the gate, implemented by *session.Manager.
type Sessions interface {
	IsSessionValid(ctx context.Context, deviceID string) (bool, error)
	StartSession(ctx context.Context, deviceID, token string) error
	Refresh(ctx context.Context, deviceID string) (string, error)
	ClearSession(ctx context.Context, deviceID string) error
	CacheRoles(ctx context.Context, deviceID string, roles []string) error
}

// Targets holds the pending post-login redirect, implemented by *session.Targets.
type Targets interface {
	Save(browserSession, target string)
	Pop(browserSession string) (string, bool)
}

// Authenticator talks to the remote auth API, implemented by *authapi.Client.
type Authenticator interface {
	ExchangeCredentials(ctx context.Context, user, pass, machineID string) (string, error)
	FetchRoles(ctx context.Context, token string) ([]string, error)
}

// roleLookupTimeout bounds a shared roles request.
const roleLookupTimeout = 15 * time.Second

// State is where a page load ended up.
type State int

const (
	StateUnvalidated State = iota
	StateOnLoginPage
	StateSessionValid
	StateSessionInvalid
)

func (s State) String() string {
	switch s {
	case StateOnLoginPage:
		return "login_page"
	case StateSessionValid:
		return "session_valid"
	case StateSessionInvalid:
		return "session_invalid"
	default:
		return "unvalidated"
	}
}

// Action is what the HTTP layer must do with the request.
type Action int

const (
	ActionShowLogin Action = iota
	ActionServe
	ActionDeny
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionServe:
		return "serve"
	case ActionDeny:
		return "deny"
	case ActionRedirect:
		return "redirect"
	default:
		return "login_page"
	}
}

// Visit is one page load.
type Visit struct {
	DeviceID       string
	BrowserSession string
	Path           string
	RawQuery       string
}

// Target is the path and query the visitor asked for.
func (v Visit) Target() string {
	if v.RawQuery == "" {
		return v.Path
	}
	return v.Path + "?" + v.RawQuery
}

// Decision is the outcome of Evaluate.
type Decision struct {
	State    State
	Action   Action
	Location string         // redirect location for ActionRedirect
	Roles    domain.RoleSet // fetched roles, empty on failure
	// Permitted is true when Roles holds an allowed role; guarded
	// navigation entries are hidden otherwise.
	Permitted bool
}

// Deps are the gate's collaborators.
type Deps struct {
	Sessions  Sessions
	Targets   Targets
	Auth      Authenticator
	Templates *template.Template
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Gate evaluates page loads and serves the login flow.
type Gate struct {
	cfg       config.GateConfig
	sessions  Sessions
	targets   Targets
	auth      Authenticator
	templates *template.Template
	metrics   *observability.Metrics
	logger    *slog.Logger

	roleLookups singleflight.Group

	limitersMu sync.Mutex
	limiters   map[string]*loginLimiter
}

// New creates a gate.
func New(cfg config.GateConfig, deps Deps) *Gate {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		cfg:       cfg,
		sessions:  deps.Sessions,
		targets:   deps.Targets,
		auth:      deps.Auth,
		templates: deps.Templates,
		metrics:   deps.Metrics,
		logger:    logger,
		limiters:  make(map[string]*loginLimiter),
	}
}

// IsLoginPath reports whether p is the login route, with or without the trailing slash.
func (g *Gate) IsLoginPath(p string) bool {
	login := g.cfg.LoginPath()
	return p == login || p == strings.TrimSuffix(login, "/")
}

// IsGuarded reports whether p lies in a guarded section.
func (g *Gate) IsGuarded(p string) bool {
	for _, prefix := range g.cfg.GuardPrefixes {
		if prefix != "" && strings.Contains(p, prefix) {
			return true
		}
	}
	return false
}

// Evaluate runs the gate for one page load. It returns an error only when
// the session store fails; role lookup failures degrade to an empty role set.
func (g *Gate) Evaluate(ctx context.Context, v Visit) (Decision, error) {
	if g.IsLoginPath(v.Path) {
		g.metrics.GateDecision(ActionShowLogin.String())
		return Decision{State: StateOnLoginPage, Action: ActionShowLogin}, nil
	}

	token, err := g.validToken(ctx, v.DeviceID)
	if err != nil {
		return Decision{State: StateUnvalidated}, err
	}
	if token == "" {
		return g.invalid(ctx, v)
	}

	roles := g.fetchRoles(ctx, v.DeviceID, token)
	permitted := roles.Any(g.cfg.AllowedRoles)
	d := Decision{
		State:     StateSessionValid,
		Action:    ActionServe,
		Roles:     roles,
		Permitted: permitted,
	}
	if !permitted && g.IsGuarded(v.Path) {
		d.Action = ActionDeny
	}
	g.metrics.GateDecision(d.Action.String())
	return d, nil
}

// validToken refreshes a valid session and returns its token, or "" when
// the device has no valid session.
func (g *Gate) validToken(ctx context.Context, deviceID string) (string, error) {
	if deviceID == "" {
		return "", nil
	}
	valid, err := g.sessions.IsSessionValid(ctx, deviceID)
	if err != nil || !valid {
		return "", err
	}
	token, err := g.sessions.Refresh(ctx, deviceID)
	if errors.Is(err, session.ErrNoSession) {
		// Expired between the check and the refresh.
		return "", nil
	}
	return token, err
}

func (g *Gate) invalid(ctx context.Context, v Visit) (Decision, error) {
	if v.DeviceID != "" {
		if err := g.sessions.ClearSession(ctx, v.DeviceID); err != nil {
			return Decision{State: StateUnvalidated}, err
		}
	}
	if v.BrowserSession != "" {
		g.targets.Save(v.BrowserSession, v.Target())
	}
	g.metrics.GateDecision(ActionRedirect.String())
	return Decision{
		State:    StateSessionInvalid,
		Action:   ActionRedirect,
		Location: g.cfg.LoginPath(),
	}, nil
}

func (g *Gate) fetchRoles(ctx context.Context, deviceID, token string) domain.RoleSet {
	// Tabs of one device loading pages together share a single lookup.
	// The lookup outlives the request that started it, so one tab closing
	// does not fail the others waiting on it.
	v, err, _ := g.roleLookups.Do(token, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), roleLookupTimeout)
		defer cancel()
		return g.auth.FetchRoles(lookupCtx, token)
	})
	if err != nil {
		g.metrics.RoleFetch("error")
		g.logger.Warn("role lookup failed", "device_id", deviceID, "error", err)
		return domain.NewRoleSet()
	}
	g.metrics.RoleFetch("ok")

	roles := domain.NewRoleSet(v.([]string)...)
	if err := g.sessions.CacheRoles(ctx, deviceID, roles.Slice()); err != nil {
		g.logger.Warn("failed to cache roles", "device_id", deviceID, "error", err)
	}
	return roles
}
