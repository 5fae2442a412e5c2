// Package config loads runtime configuration for the talentdir CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Environment variables (TALENTDIR_*, NEXT_PUBLIC_API_URL), with a dotenv
//     file (-e/-env, or ./.env) filling gaps in the process environment.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string   API base URL
//	-s string   state database path
//	-t int      request timeout (seconds)
//	-l string   log level
//
// # JSON schema
//
// Durations may be strings like "30s" or integer nanoseconds:
//
//	{
//	  "api_base_url": "http://localhost:8000/api",
//	  "state_path": "talentdir.db",
//	  "request_timeout": "30s",
//	  "coalesce_refresh": true,
//	  "log_level": "info",
//	  "log_format": "json"
//	}
package config
