// Command convertupload is the kiosk pipeline CLI: it runs capture sessions
// and exposes history, preflight and configuration utilities.
package main
