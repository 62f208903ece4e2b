// Package config loads the service configuration from an optional TOML
// file with ${VAR} environment expansion. The deployment-critical values
// (API key, database URL, listen port) can be supplied entirely through
// JKT48_API_KEY, DATABASE_URL, and PORT, which override the file.
//
// Configuration is resolved in three passes: file values, environment
// overrides, then defaults for anything still unset. Validation runs last
// and a failure there is fatal at startup.
package config
