// Package logging provides slog-based structured logging for the mila
// daemon and CLI. It exposes typed attribute helpers, standardized field
// names, and console/JSON handlers selected through configuration.
package logging
