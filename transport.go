package callcore

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Transport defines the call-signaling and media primitives the engine
// consumes from the peer transport layer. Implementations are expected to be
// safe for concurrent use; the engine calls into the transport from the
// UI/control goroutine, the media-iteration goroutine, and frame producer
// goroutines.
//
// Every method that can fail returns a transport-defined error. The engine
// translates those errors into boolean success at its own API boundary; the
// only error value with contract-level meaning is ErrTransportBusy, which
// frame sends may return on transient internal lock contention.
type Transport interface {
	// Call initiates a call to a friend. Bit rates are in kbit/s; a zero
	// video bit rate starts an audio-only call.
	Call(friendID, audioBitrate, videoBitrate uint32) error

	// Answer accepts a pending incoming call from a friend.
	Answer(friendID, audioBitrate, videoBitrate uint32) error

	// CallControl issues a call control action (cancel, pause, resume).
	CallControl(friendID uint32, ctrl CallControl) error

	// SetVideoBitrate changes the video bit rate mid-call. A zero rate
	// signals that no video will be sent until a non-zero rate is set.
	SetVideoBitrate(friendID, bitrate uint32) error

	// SetEncoderOption sets a per-peer video encoder option.
	SetEncoderOption(friendID uint32, opt EncoderOption, value int32) error

	// SendAudioFrame transmits one PCM audio frame.
	SendAudioFrame(friendID uint32, pcm []int16, sampleCount int, channels uint8, rate uint32) error

	// SendVideoFrame transmits one YUV420 video frame.
	SendVideoFrame(friendID uint32, frame *VideoFrame) error

	// SendGroupAudio transmits one PCM audio frame into a group call.
	// Group audio mixing happens transport-side.
	SendGroupAudio(groupID uint32, pcm []int16, sampleCount int, channels uint8, rate uint32) error

	// Iterate performs one step of the transport's internal event loop,
	// delivering any pending payload callbacks, and returns the interval
	// the transport wants before the next step.
	Iterate() time.Duration

	// RegisterHandler installs the engine's event handler. Must be called
	// before the transport delivers any events.
	RegisterHandler(h EventHandler)
}

// EventHandler is the capability interface through which the transport
// reports events back into the engine. The Manager implements it.
//
// OnInvite, OnCallStateChanged and the bitrate recommendations arrive on the
// transport's internal goroutine; the payload callbacks (frames) arrive on
// the media-iteration goroutine that drives Transport.Iterate.
type EventHandler interface {
	// OnInvite is delivered when a friend calls us.
	OnInvite(friendID uint32, audio, video bool)

	// OnCallStateChanged is delivered when the peer's call state bitmask
	// changes, including the terminal error/finished signals.
	OnCallStateChanged(friendID uint32, state CallState)

	// OnAudioBitrate and OnVideoBitrate deliver the transport's bitrate
	// adaptation recommendations.
	OnAudioBitrate(friendID uint32, rate uint32)
	OnVideoBitrate(friendID uint32, rate uint32)

	// OnAudioFrame delivers one decoded PCM frame received from a friend.
	OnAudioFrame(friendID uint32, pcm []int16, sampleCount int, channels uint8, rate uint32)

	// OnVideoFrame delivers one decoded YUV420 frame received from a friend.
	OnVideoFrame(friendID uint32, frame *VideoFrame)

	// OnGroupAudioFrame delivers one group-audio payload from a group
	// peer. The payload is Opus-encoded as produced by the conference
	// relay; the engine decodes it before playback.
	OnGroupAudioFrame(groupID uint32, peer PeerKey, data []byte, channels uint8, rate uint32)

	// OnCommInfo delivers encoder/decoder telemetry.
	OnCommInfo(friendID uint32, info CommInfo, value int64)
}

// parseTransportErr translates a transport error into boolean success,
// logging the failure. This is the single place transport protocol errors
// are folded into the engine's boolean API results.
func parseTransportErr(op string, friendID uint32, err error) bool {
	if err == nil {
		return true
	}
	logrus.WithFields(logrus.Fields{
		"function":  "parseTransportErr",
		"operation": op,
		"friend_id": friendID,
		"error":     err.Error(),
	}).Warn("Transport operation failed")
	return false
}
