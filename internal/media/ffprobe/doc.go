// Package ffprobe shells out to ffprobe for container duration and video
// dimension probing.
package ffprobe
