package callcore

import (
	"fmt"
	"sync"
)

// VideoFrame is one YUV420 video frame with per-plane stride information.
type VideoFrame struct {
	Width  uint16
	Height uint16

	Y []byte
	U []byte
	V []byte

	YStride int
	UStride int
	VStride int
}

// boundedSize returns the frame dimensions clamped to the engine's maximum
// transmit resolution, preserving the aspect ratio by scaling both axes with
// the tighter bound. Dimensions are kept even for YUV420 chroma subsampling.
func boundedSize(width, height uint16) (uint16, uint16) {
	if width <= MaxVideoWidth && height <= MaxVideoHeight {
		return width, height
	}

	scaleW := float64(MaxVideoWidth) / float64(width)
	scaleH := float64(MaxVideoHeight) / float64(height)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	w := uint16(float64(width)*scale) &^ 1
	h := uint16(float64(height)*scale) &^ 1
	return w, h
}

// scaleFrame resizes a YUV420 frame to the target dimensions using
// nearest-neighbor sampling. The result uses packed planes (stride equals
// plane width).
func scaleFrame(frame *VideoFrame, targetWidth, targetHeight uint16) (*VideoFrame, error) {
	if frame == nil {
		return nil, fmt.Errorf("source frame cannot be nil")
	}
	// The same-size pass-through comes before the parity check: a frame that
	// needs no scaling is transmitted as-is, odd dimensions included.
	if frame.Width == targetWidth && frame.Height == targetHeight {
		return frame, nil
	}
	if targetWidth == 0 || targetHeight == 0 || targetWidth%2 != 0 || targetHeight%2 != 0 {
		return nil, fmt.Errorf("invalid target dimensions for YUV420: %dx%d", targetWidth, targetHeight)
	}

	uvWidth := int(targetWidth) / 2
	uvHeight := int(targetHeight) / 2
	out := &VideoFrame{
		Width:   targetWidth,
		Height:  targetHeight,
		Y:       make([]byte, int(targetWidth)*int(targetHeight)),
		U:       make([]byte, uvWidth*uvHeight),
		V:       make([]byte, uvWidth*uvHeight),
		YStride: int(targetWidth),
		UStride: uvWidth,
		VStride: uvWidth,
	}

	for y := 0; y < int(targetHeight); y++ {
		srcY := y * int(frame.Height) / int(targetHeight)
		for x := 0; x < int(targetWidth); x++ {
			srcX := x * int(frame.Width) / int(targetWidth)
			out.Y[y*out.YStride+x] = frame.Y[srcY*frame.YStride+srcX]
		}
	}

	srcUVWidth := int(frame.Width) / 2
	srcUVHeight := int(frame.Height) / 2
	for y := 0; y < uvHeight; y++ {
		srcY := y * srcUVHeight / uvHeight
		for x := 0; x < uvWidth; x++ {
			srcX := x * srcUVWidth / uvWidth
			out.U[y*out.UStride+x] = frame.U[srcY*frame.UStride+srcX]
			out.V[y*out.VStride+x] = frame.V[srcY*frame.VStride+srcX]
		}
	}

	return out, nil
}

// VideoStream is the stream of received video frames for one call, consumed
// by the UI. The engine pushes decoded frames into it; the UI installs a
// frame handler to render them.
//
// The stream can be stopped and restarted without tearing down the call.
// This absorbs the transport's occasionally out-of-order "last frame" /
// "stopped sending" callback delivery: while the peer says it is not
// sending, the stream swallows any stray frames instead of rendering them.
type VideoStream struct {
	mu      sync.Mutex
	handler func(*VideoFrame)
	stopped bool
	closed  bool
}

// NewVideoStream creates an idle video stream.
func NewVideoStream() *VideoStream {
	return &VideoStream{}
}

// SetFrameHandler installs the function invoked for each received frame,
// or nil to detach.
func (s *VideoStream) SetFrameHandler(handler func(*VideoFrame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// PushFrame delivers one received frame to the handler. Frames pushed while
// the stream is stopped or closed are dropped.
func (s *VideoStream) PushFrame(frame *VideoFrame) {
	s.mu.Lock()
	handler := s.handler
	drop := s.stopped || s.closed
	s.mu.Unlock()

	if drop || handler == nil {
		return
	}
	handler(frame)
}

// Stop pauses frame delivery.
func (s *VideoStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// Restart resumes frame delivery after Stop.
func (s *VideoStream) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
}

// Stopped reports whether the stream is currently paused.
func (s *VideoStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Close permanently detaches the stream. Called when the call is removed.
func (s *VideoStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.handler = nil
}
