// Package wizard is the foreground console flow the guest walks through
// while the enhancement runs in the background.
package wizard
