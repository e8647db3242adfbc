// Package pipeline coordinates the capture, enhance and deliver stages of
// one kiosk run. A background render task, a cosmetic progress publisher
// and a consent-gated upload task run concurrently; the orchestrator owns
// the state machine that keeps them ordered.
package pipeline
