package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/dmitrijs2005/talentdir/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// Environment variables read by parseEnv. NEXT_PUBLIC_API_URL is honoured so
// an existing frontend .env can be reused; TALENTDIR_API_URL wins over it.
const (
	EnvAPIURL          = "TALENTDIR_API_URL"
	EnvPublicAPIURL    = "NEXT_PUBLIC_API_URL"
	EnvLoginURL        = "TALENTDIR_LOGIN_URL"
	EnvStatePath       = "TALENTDIR_STATE"
	EnvRequestTimeout  = "TALENTDIR_TIMEOUT"
	EnvCoalesceRefresh = "TALENTDIR_COALESCE_REFRESH"
	EnvLogLevel        = "TALENTDIR_LOG_LEVEL"
	EnvLogFormat       = "TALENTDIR_LOG_FORMAT"
)

// parseEnv overlays cfg with environment variables. Values from a dotenv file
// (-e/-env, or ./.env when present) fill in what the process environment
// does not set.
func parseEnv(cfg *Config, args []string, lookup func(string) (string, bool)) error {
	file := flagx.EnvFile(args)
	explicit := file != ""
	if !explicit {
		file = defaultEnvFile
	}

	dotenv, err := godotenv.Read(file)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read env file %s: %w", file, err)
		}
		dotenv = map[string]string{}
	}

	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok && v != ""
	}

	if v, ok := get(EnvPublicAPIURL); ok {
		cfg.APIBaseURL = v
	}
	if v, ok := get(EnvAPIURL); ok {
		cfg.APIBaseURL = v
	}
	if v, ok := get(EnvLoginURL); ok {
		cfg.LoginURL = v
	}
	if v, ok := get(EnvStatePath); ok {
		cfg.StatePath = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.LogLevel = v
	}
	if v, ok := get(EnvLogFormat); ok {
		cfg.LogFormat = v
	}
	if v, ok := get(EnvRequestTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if v, ok := get(EnvCoalesceRefresh); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCoalesceRefresh, err)
		}
		cfg.CoalesceRefresh = b
	}
	return nil
}
