// Package config loads threadloom configuration from YAML files.
//
// Configuration values support ${VAR_NAME} environment variable
// expansion. Unset fields fall back to defaults: the database lives
// under the XDG data directory and logs are human-readable text at
// info level.
package config
