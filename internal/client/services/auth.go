// Package services contains application services for the talentdir client:
// authentication, directory browsing, profile views with view tracking, and
// optimistic skill endorsement.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/talentdir/internal/client/client"
	"github.com/dmitrijs2005/talentdir/internal/client/identity"
	"github.com/dmitrijs2005/talentdir/internal/client/models"
	"github.com/dmitrijs2005/talentdir/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

const (
	MsgInvalidCredentials = "Invalid username or password."
	MsgRegistrationFailed = "Registration failed. The username or email may already be taken."
)

// UserError is an error whose Error text is meant for the user. The
// underlying cause stays reachable through errors.Is/As.
type UserError struct {
	Msg string
	Err error
}

func (e *UserError) Error() string { return e.Msg }
func (e *UserError) Unwrap() error { return e.Err }

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login: authenticate, persist tokens and the user snapshot, report admin.
//   - Register: create a new account; does not log in.
//   - Logout: forget tokens, the user snapshot and the session key.
//   - Current: the persisted identity, if any.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Register(ctx context.Context, req models.RegisterRequest) error
	Logout(ctx context.Context)
	Current(ctx context.Context) (*Identity, bool)
}

// LoginResult is what a successful login reports.
type LoginResult struct {
	User    models.User
	IsAdmin bool
}

// Identity is the locally persisted view of who is logged in.
type Identity struct {
	User models.User
	// AccessExpiresAt is read from the access token without verifying it;
	// zero when there is no token or it carries no exp claim.
	AccessExpiresAt time.Time
	HasAccessToken  bool
	HasRefreshToken bool
}

// Active reports whether the identity still holds a credential the pipeline
// can use.
func (i *Identity) Active() bool {
	return i.HasAccessToken || i.HasRefreshToken
}

// Expired reports whether the access token is past its exp at now.
func (i *Identity) Expired(now time.Time) bool {
	return !i.AccessExpiresAt.IsZero() && !now.Before(i.AccessExpiresAt)
}

type accessClaims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

type authService struct {
	client client.Client
	store  *identity.Store
	log    logging.Logger
}

// NewAuthService constructs an AuthService bound to the API client and the
// identity store.
func NewAuthService(c client.Client, store *identity.Store, log logging.Logger) AuthService {
	if log == nil {
		log = logging.Nop()
	}
	return &authService{client: c, store: store, log: log.With("component", "auth")}
}

// Login authenticates against the server. On success both tokens and the user
// snapshot are stored, then the admin flag is fetched with the new token; a
// failed admin check only means "not admin".
func (a *authService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	resp, err := a.client.Login(ctx, models.LoginRequest{
		Username: strings.TrimSpace(username),
		Password: password,
	})
	if err != nil {
		return nil, &UserError{Msg: serverMessageOr(err, MsgInvalidCredentials), Err: err}
	}
	if resp.Tokens.Access == "" {
		return nil, &UserError{Msg: MsgInvalidCredentials, Err: errors.New("login response carried no access token")}
	}

	a.store.Set(ctx, identity.AccessToken, resp.Tokens.Access)
	a.store.Set(ctx, identity.RefreshToken, resp.Tokens.Refresh)
	a.store.SetUser(ctx, &resp.User)

	res := &LoginResult{User: resp.User}
	if check, err := a.client.AdminCheck(ctx); err != nil {
		a.log.Debug(ctx, "admin check failed, assuming regular user", "error", err)
	} else {
		res.IsAdmin = check.IsAdmin
	}

	a.log.Info(ctx, "logged in", "user", resp.User.Username, "admin", res.IsAdmin)
	return res, nil
}

func (a *authService) Register(ctx context.Context, req models.RegisterRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := a.client.Register(ctx, req); err != nil {
		return &UserError{Msg: serverMessageOr(err, MsgRegistrationFailed), Err: err}
	}
	a.log.Info(ctx, "registered", "user", req.Username)
	return nil
}

// Logout forgets the session. The session key goes too, so the next visit is
// counted as a new anonymous visitor.
func (a *authService) Logout(ctx context.Context) {
	a.store.Reset(ctx)
	a.log.Info(ctx, "logged out")
}

func (a *authService) Current(ctx context.Context) (*Identity, bool) {
	u, ok := a.store.User(ctx)
	if !ok {
		return nil, false
	}
	id := &Identity{User: *u}
	_, id.HasRefreshToken = a.store.Get(ctx, identity.RefreshToken)

	token, ok := a.store.Get(ctx, identity.AccessToken)
	if !ok {
		return id, true
	}
	id.HasAccessToken = true
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		a.log.Debug(ctx, "access token is not a readable JWT", "error", err)
		return id, true
	}
	if claims.ExpiresAt != nil {
		id.AccessExpiresAt = claims.ExpiresAt.Time
	}
	return id, true
}

// serverMessageOr returns the backend's own message when the failure carried
// one, fallback otherwise.
func serverMessageOr(err error, fallback string) string {
	var he *client.HTTPError
	if errors.As(err, &he) && he.Message != "" {
		return he.Message
	}
	return fallback
}
