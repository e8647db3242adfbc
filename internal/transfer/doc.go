// Package transfer uploads the enhanced artifact to remote storage in
// resumable chunks, tracking fractional progress and ETA and producing the
// shareable reference delivered to the guest.
package transfer
