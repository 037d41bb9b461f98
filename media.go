package callcore

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Frame-send retry policy for transient transport lock contention. Audio
// frames are retried a bounded number of times and then dropped; video
// frames are never retried because video tolerates drops better than the
// producer tolerates blocking.
const (
	audioSendRetries = 3
	audioRetrySleep  = 500 * time.Microsecond
)

// SendCallAudio sends one captured audio frame to a friend.
//
// Returns false only when no call exists for the friend; a muted call or a
// peer not accepting audio is "nothing to send" and returns true. When the
// frame is mono at the engine's native rate, the filter pipeline
// (downsample, noise-suppress, echo-cancel, upsample) is applied in place
// before transmission.
//
// A transport lock-busy result is retried up to audioSendRetries times with
// a short sleep; past the bound the frame is dropped with a log line. Frame
// loss is acceptable for audio, blocking the capture thread is not.
func (m *Manager) SendCallAudio(friendID uint32, pcm []int16, sampleCount int, channels uint8, rate uint32) bool {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	call, ok := m.registry.Peer(friendID)
	if !ok {
		return false
	}

	if call.MuteMic() || !call.IsActive() || !call.State().Has(CallStateAcceptingAudio) {
		return true
	}

	// Filter path is mono at the native rate only; everything else is
	// sent untouched. A sample count past the slice bound skips the filter
	// rather than panicking on it.
	if channels == 1 && rate == AudioSampleRate && sampleCount <= len(pcm) {
		m.dsp.ProcessCapture(pcm[:sampleCount], rate)
	}

	retries := 0
	for {
		err := m.transport.SendAudioFrame(friendID, pcm, sampleCount, channels, rate)
		if err == nil {
			return true
		}
		if !errors.Is(err, ErrTransportBusy) {
			logrus.WithFields(logrus.Fields{
				"function":  "SendCallAudio",
				"friend_id": friendID,
				"error":     err.Error(),
			}).Debug("Audio frame send failed")
			return true
		}
		retries++
		if retries > audioSendRetries {
			logrus.WithFields(logrus.Fields{
				"function":  "SendCallAudio",
				"friend_id": friendID,
				"retries":   retries - 1,
			}).Debug("Transport lock busy, dropping audio frame")
			return true
		}
		time.Sleep(audioRetrySleep)
	}
}

// SendCallVideo sends one captured video frame to a friend.
//
// The registry read lock is probed non-blocking first: the frame producer
// runs on the capture pipeline's thread and must never stall behind a
// UI-driven structural change, so a contended lock drops the frame.
//
// If video sending was previously suspended (null video bitrate), the
// default bit rate is restored before transmission. Frames above the
// maximum transmit resolution are downscaled. Send failures are logged and
// the frame is lost; there is no retry.
func (m *Manager) SendCallVideo(friendID uint32, frame *VideoFrame) {
	if !m.registry.mu.TryRLock() {
		logrus.WithFields(logrus.Fields{
			"function":  "SendCallVideo",
			"friend_id": friendID,
		}).Debug("Registry lock contended, dropping video frame")
		return
	}
	defer m.registry.mu.RUnlock()

	call, ok := m.registry.Peer(friendID)
	if !ok {
		return
	}

	if !call.VideoEnabled() || !call.IsActive() || !call.State().Has(CallStateAcceptingVideo) {
		return
	}

	if call.NullVideoBitrate() {
		logrus.WithFields(logrus.Fields{
			"function":  "SendCallVideo",
			"friend_id": friendID,
		}).Debug("Restarting video stream to friend")
		if !parseTransportErr("set video bitrate", friendID, m.transport.SetVideoBitrate(friendID, VideoDefaultBitrate)) {
			return
		}
		call.SetNullVideoBitrate(false)
	}

	if frame == nil {
		return
	}
	targetW, targetH := boundedSize(frame.Width, frame.Height)
	scaled, err := scaleFrame(frame, targetW, targetH)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "SendCallVideo",
			"friend_id": friendID,
			"error":     err.Error(),
		}).Debug("Video frame scaling failed, dropping frame")
		return
	}

	if err := m.transport.SendVideoFrame(friendID, scaled); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "SendCallVideo",
			"friend_id": friendID,
			"error":     err.Error(),
		}).Debug("Video frame send failed")
	}
}

// SendGroupCallAudio sends one captured audio frame into a group call.
//
// Same gating as the peer path: false only when no group call exists, true
// when there is simply nothing to send. Group audio bypasses the echo
// pipeline because mixing happens transport-side.
func (m *Manager) SendGroupCallAudio(groupID uint32, pcm []int16, sampleCount int, channels uint8, rate uint32) bool {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	call, ok := m.registry.Group(groupID)
	if !ok {
		return false
	}

	if !call.IsActive() || call.MuteMic() {
		return true
	}

	if err := m.transport.SendGroupAudio(groupID, pcm, sampleCount, channels, rate); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "SendGroupCallAudio",
			"group_id": groupID,
			"error":    err.Error(),
		}).Debug("Group audio send failed")
	}
	return true
}
