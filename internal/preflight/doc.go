// Package preflight verifies the kiosk's external dependencies and disk
// headroom before a run starts, so failures surface at startup instead of
// mid-pipeline.
package preflight
