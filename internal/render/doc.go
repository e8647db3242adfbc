// Package render attaches to the external rendering engine's scripting
// service and drives one headless render job to completion.
package render
