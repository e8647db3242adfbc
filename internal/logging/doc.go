// Package logging builds the process-wide slog logger with console and JSON
// handlers and standardized attribute keys.
package logging
