package callcore

import (
	"testing"
)

// TestBoundedSize verifies transmit-resolution clamping keeps the aspect
// ratio and even dimensions.
func TestBoundedSize(t *testing.T) {
	cases := []struct {
		name         string
		inW, inH     uint16
		wantW, wantH uint16
	}{
		{"within bounds", 1280, 720, 1280, 720},
		{"exact bounds", 1920, 1080, 1920, 1080},
		{"4k downscale", 3840, 2160, 1920, 1080},
		{"portrait", 1080, 2160, 540, 1080},
		{"wide", 4000, 1000, 1920, 480},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := boundedSize(tc.inW, tc.inH)
			if w != tc.wantW || h != tc.wantH {
				t.Errorf("boundedSize(%d, %d) = %dx%d, want %dx%d",
					tc.inW, tc.inH, w, h, tc.wantW, tc.wantH)
			}
			if w%2 != 0 || h%2 != 0 {
				t.Errorf("dimensions must stay even for YUV420: %dx%d", w, h)
			}
		})
	}
}

// TestScaleFrame verifies nearest-neighbor scaling produces packed planes of
// the right size and passes same-size frames through.
func TestScaleFrame(t *testing.T) {
	src := &VideoFrame{
		Width: 8, Height: 8,
		Y: make([]byte, 64), U: make([]byte, 16), V: make([]byte, 16),
		YStride: 8, UStride: 4, VStride: 4,
	}
	for i := range src.Y {
		src.Y[i] = byte(i)
	}

	out, err := scaleFrame(src, 4, 4)
	if err != nil {
		t.Fatalf("scaleFrame failed: %v", err)
	}
	if out.Width != 4 || out.Height != 4 {
		t.Errorf("Scaled dimensions = %dx%d, want 4x4", out.Width, out.Height)
	}
	if len(out.Y) != 16 || len(out.U) != 4 || len(out.V) != 4 {
		t.Errorf("Scaled plane sizes: Y=%d U=%d V=%d", len(out.Y), len(out.U), len(out.V))
	}
	if out.YStride != 4 || out.UStride != 2 {
		t.Error("Scaled planes must be packed")
	}

	// Same-size scaling returns the source frame unchanged.
	same, err := scaleFrame(src, 8, 8)
	if err != nil {
		t.Fatalf("Same-size scale failed: %v", err)
	}
	if same != src {
		t.Error("Same-size scaling should return the source frame")
	}

	// An odd-dimension frame that needs no scaling passes through untouched.
	odd := &VideoFrame{
		Width: 7, Height: 6,
		Y: make([]byte, 42), U: make([]byte, 12), V: make([]byte, 12),
		YStride: 7, UStride: 3, VStride: 3,
	}
	same, err = scaleFrame(odd, 7, 6)
	if err != nil {
		t.Fatalf("Same-size scale of an odd frame failed: %v", err)
	}
	if same != odd {
		t.Error("Same-size odd frame should be transmitted as-is")
	}

	// Odd target dimensions are invalid for YUV420.
	if _, err := scaleFrame(src, 5, 4); err == nil {
		t.Error("Odd target width should be rejected")
	}
	if _, err := scaleFrame(nil, 4, 4); err == nil {
		t.Error("Nil source should be rejected")
	}
}

// TestVideoStream verifies handler delivery, pause/resume, and close.
func TestVideoStream(t *testing.T) {
	stream := NewVideoStream()
	frame := &VideoFrame{Width: 2, Height: 2}

	// No handler installed: frames are dropped silently.
	stream.PushFrame(frame)

	delivered := 0
	stream.SetFrameHandler(func(*VideoFrame) { delivered++ })

	stream.PushFrame(frame)
	if delivered != 1 {
		t.Fatalf("Expected 1 delivered frame, got %d", delivered)
	}

	stream.Stop()
	stream.PushFrame(frame)
	if delivered != 1 {
		t.Error("Stopped stream must drop frames")
	}
	if !stream.Stopped() {
		t.Error("Stream should report stopped")
	}

	stream.Restart()
	stream.PushFrame(frame)
	if delivered != 2 {
		t.Error("Restarted stream must deliver frames again")
	}

	stream.Close()
	stream.PushFrame(frame)
	if delivered != 2 {
		t.Error("Closed stream must drop frames")
	}
}
