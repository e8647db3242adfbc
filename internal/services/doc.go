// Package services provides the shared error taxonomy and context helpers
// used across pipeline stages.
package services
