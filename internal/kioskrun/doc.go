// Package kioskrun assembles the full pipeline for one kiosk session:
// lock, history store, preflight, orchestrator and the foreground wizard.
package kioskrun
