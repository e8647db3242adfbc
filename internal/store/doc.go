// Package store persists run history and per-recipient delivery outcomes
// in SQLite so operators can audit past kiosk sessions.
package store
