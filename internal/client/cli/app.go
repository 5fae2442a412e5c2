package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/talentdir/internal/client/client"
	"github.com/dmitrijs2005/talentdir/internal/client/config"
	"github.com/dmitrijs2005/talentdir/internal/client/identity"
	"github.com/dmitrijs2005/talentdir/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/talentdir/internal/client/services"
	"github.com/dmitrijs2005/talentdir/internal/client/session"
	"github.com/dmitrijs2005/talentdir/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// Streams are the terminal endpoints the App talks to.
type Streams struct {
	In  io.Reader
	Out io.Writer
	// Err receives diagnostic logs.
	Err io.Writer
}

type App struct {
	config   *config.Config
	log      logging.Logger
	auth     services.AuthService
	profiles services.ProfileService
	store    *identity.Store
	metrics  prometheus.Gatherer
	db       *sql.DB

	reader *bufio.Reader
	out    io.Writer

	mu   sync.Mutex
	view *services.ProfileView

	// set when the session ended and the user has to log in again
	loginPending atomic.Bool
}

// NewApp wires local state, the request pipeline and the services for cfg.
func NewApp(ctx context.Context, cfg *config.Config, s Streams) (*App, error) {
	log := logging.New(cfg.LogFormat, cfg.LogLevel, s.Err)

	a := &App{
		config: cfg,
		log:    log,
		reader: bufio.NewReader(s.In),
		out:    s.Out,
	}

	repo, err := a.openState(ctx)
	if err != nil {
		return nil, err
	}
	store := identity.NewStore(repo, log)
	a.store = store

	reg := prometheus.NewRegistry()
	a.metrics = reg

	pipe, err := client.NewPipeline(client.Options{
		BaseURL:         cfg.APIBaseURL,
		Timeout:         cfg.RequestTimeout,
		CoalesceRefresh: cfg.CoalesceRefresh,
		Metrics:         client.NewMetrics(reg),
		Logger:          log,
	}, store, session.NewGenerator(store, log), a)
	if err != nil {
		a.Close()
		return nil, err
	}
	api := client.NewHTTPClient(pipe)

	a.auth = services.NewAuthService(api, store, log)
	a.profiles = services.NewProfileService(api, store, a, &consolePrompter{reader: a.reader, out: a.out}, log)
	return a, nil
}

func (a *App) openState(ctx context.Context) (metadata.Repository, error) {
	if a.config.StatePath == client.MemoryDSN {
		return metadata.NewMemoryRepository(), nil
	}
	db, err := client.InitDatabase(ctx, a.config.StatePath)
	if err != nil {
		a.log.Error(ctx, "error initializing state database", "path", a.config.StatePath, "error", err)
		return nil, err
	}
	a.db = db
	return metadata.NewSQLiteRepository(db), nil
}

// Close releases the state database.
func (a *App) Close() error {
	a.closeView()
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Run greets the user and serves commands until exit or EOF.
func (a *App) Run(ctx context.Context) {
	a.printf("Welcome to the talent directory CLI (type 'help' for commands)\n")
	if id, ok := a.auth.Current(ctx); ok && id.Active() {
		a.printf("Logged in as %s\n", id.User.Username)
	}
	runREPL(ctx, a, a.status, a.reader)
}

// RedirectToLogin ends the current session on the terminal side: the open
// profile is closed and commands needing an account ask for a new login.
func (a *App) RedirectToLogin(ctx context.Context) {
	if a.loginPending.Swap(true) {
		return
	}
	a.closeView()
	a.log.Info(ctx, "redirecting to login", "login_url", a.config.LoginURL)
	a.printf("Login required. Type 'login' to sign in (%s).\n", a.config.LoginURL)
}

func (a *App) isLoggedIn() bool {
	if a.loginPending.Load() {
		return false
	}
	id, ok := a.auth.Current(context.Background())
	return ok && id.Active()
}

func (a *App) status() string {
	s := ""
	if a.isLoggedIn() {
		if id, ok := a.auth.Current(context.Background()); ok {
			s = id.User.Username
		}
	}
	if v := a.currentView(); v != nil {
		if s != "" {
			s += " "
		}
		s += fmt.Sprintf("profile %d", v.ProfileID())
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) currentView() *services.ProfileView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view
}

// setView replaces the open profile, closing the previous activation.
func (a *App) setView(v *services.ProfileView) {
	a.mu.Lock()
	prev := a.view
	a.view = v
	a.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

func (a *App) closeView() {
	a.setView(nil)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// consolePrompter asks and tells through the terminal.
type consolePrompter struct {
	reader *bufio.Reader
	out    io.Writer
}

func (p *consolePrompter) Confirm(_ context.Context, msg string) bool {
	return GetConfirmation(p.reader, msg, p.out)
}

func (p *consolePrompter) Notify(_ context.Context, msg string) {
	fmt.Fprintln(p.out, msg)
}
