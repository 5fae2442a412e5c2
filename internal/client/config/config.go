package config

import (
	"os"
	"time"

	"github.com/dmitrijs2005/talentdir/internal/common"
)

// Config holds runtime settings for the talentdir CLI.
//
// Fields:
//   - APIBaseURL: absolute base of the backend API, e.g. http://localhost:8000/api.
//   - LoginURL: where the user is sent when the session ends.
//   - StatePath: SQLite file holding tokens and the session key (":memory:" for none).
//   - RequestTimeout: per-call deadline for backend requests.
//   - CoalesceRefresh: share one token refresh between concurrent 401s.
//   - LogLevel / LogFormat: see logging.New.
type Config struct {
	APIBaseURL      string
	LoginURL        string
	StatePath       string
	RequestTimeout  time.Duration
	CoalesceRefresh bool
	LogLevel        string
	LogFormat       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:8000/api"
	c.LoginURL = common.DefaultLoginPageURL
	c.StatePath = "talentdir.db"
	c.RequestTimeout = 30 * time.Second
	c.CoalesceRefresh = true
	c.LogLevel = "warn"
	c.LogFormat = "text"
}

// LoadConfig constructs a Config from defaults, then the JSON file, then the
// environment (.env included), then command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	return load(args, os.LookupEnv)
}

func load(args []string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, args, lookup); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
