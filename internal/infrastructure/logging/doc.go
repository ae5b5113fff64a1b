// Package logging provides the structured logger used across Latchkey Core.
//
// It is a thin wrapper over log/slog that applies the configured output,
// format, and level, and stamps every record with the service name and
// version. Components receive a *Logger (or define their own narrow logging
// interface) rather than using a global.
package logging
