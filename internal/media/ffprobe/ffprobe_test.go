package ffprobe_test

import (
	"context"
	"testing"

	"convertupload/internal/media/ffprobe"
)

func TestDurationSeconds(t *testing.T) {
	tests := []struct {
		name     string
		duration string
		want     float64
	}{
		{"normal", "61.533000", 61.533},
		{"empty", "", 0},
		{"garbage", "N/A", 0},
		{"negative", "-3", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := ffprobe.Result{Format: ffprobe.Format{Duration: tc.duration}}
			if got := result.DurationSeconds(); got != tc.want {
				t.Fatalf("DurationSeconds() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDimensionsUsesFirstVideoStream(t *testing.T) {
	result := ffprobe.Result{Streams: []ffprobe.Stream{
		{CodecType: "audio", Width: 0, Height: 0},
		{CodecType: "video", Width: 1920, Height: 1080},
		{CodecType: "video", Width: 640, Height: 480},
	}}
	w, h := result.Dimensions()
	if w != 1920 || h != 1080 {
		t.Fatalf("Dimensions() = %dx%d, want 1920x1080", w, h)
	}
}

func TestDimensionsWithoutVideoStream(t *testing.T) {
	result := ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "audio"}}}
	if w, h := result.Dimensions(); w != 0 || h != 0 {
		t.Fatalf("Dimensions() = %dx%d, want zeros", w, h)
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := ffprobe.Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
