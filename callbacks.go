package callcore

import (
	"github.com/sirupsen/logrus"
)

// Transport event handling. The Manager is the transport's EventHandler:
// signaling events arrive on the transport's internal goroutine, payload
// events on the media-iteration goroutine. Notifications triggered by any
// of these are emitted only after the registry lock is released, because
// the UI may reenter the engine from the notification handler.

// OnInvite handles an incoming call invite from a friend.
//
// The registry entry is created here, before the UI ever sees the invite,
// so a later AnswerCall finds it. When we are somehow already in a call
// with the friend, the invite is rejected with a cancel control.
func (m *Manager) OnInvite(friendID uint32, audio, video bool) {
	m.registry.mu.Lock()

	backend := m.Audio()
	if backend == nil {
		logrus.WithFields(logrus.Fields{
			"function":  "OnInvite",
			"friend_id": friendID,
		}).Error("Audio backend must be set before receiving a call")
		m.registry.mu.Unlock()
		return
	}

	call := newPeerCall(friendID, video, backend)
	if !m.registry.InsertPeer(friendID, call) {
		logrus.WithFields(logrus.Fields{
			"function":  "OnInvite",
			"friend_id": friendID,
		}).Warn("Rejecting call invite, we're already in that call")
		parseTransportErr("call control", friendID, m.transport.CallControl(friendID, CallControlCancel))
		call.close()
		m.registry.mu.Unlock()
		return
	}

	logrus.WithFields(logrus.Fields{
		"function":  "OnInvite",
		"friend_id": friendID,
		"audio":     audio,
		"video":     video,
	}).Debug("Received call invite")

	// Answering does not produce a state callback, so fill the state in
	// advance from the invite's media flags.
	var state CallState
	if audio {
		state |= CallStateSendingAudio | CallStateAcceptingAudio
	}
	if video {
		state |= CallStateSendingVideo | CallStateAcceptingVideo
	}
	call.SetState(state)

	m.registry.mu.Unlock()

	m.notifyInvite(friendID, video)
}

// OnCallStateChanged handles a peer call-state transition.
//
// Rules are evaluated in order: the error bit tears the call down with an
// abnormal-end notification; the finished bit tears it down quietly; a
// first non-zero state after establishment marks the call active and emits
// the started notification (this covers both the outgoing-call-picked-up
// and the incoming-call-answered paths); a sending-video bit transition
// pauses or resumes the received-video stream without touching the call.
// The pause/resume pair absorbs the transport's occasionally out-of-order
// last-frame/stop-sending delivery.
func (m *Manager) OnCallStateChanged(friendID uint32, state CallState) {
	m.registry.mu.Lock()

	call, ok := m.registry.Peer(friendID)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function":  "OnCallStateChanged",
			"friend_id": friendID,
		}).Warn("State change for a call that is already dead")
		m.registry.mu.Unlock()
		return
	}

	switch {
	case state.Has(CallStateError):
		logrus.WithFields(logrus.Fields{
			"function":  "OnCallStateChanged",
			"friend_id": friendID,
		}).Warn("Call died of unnatural causes")
		m.registry.RemovePeer(friendID)
		m.registry.mu.Unlock()
		m.notifyEnd(friendID, true)

	case state.Has(CallStateFinished):
		logrus.WithFields(logrus.Fields{
			"function":  "OnCallStateChanged",
			"friend_id": friendID,
		}).Debug("Call finished quietly")
		m.registry.RemovePeer(friendID)
		m.registry.mu.Unlock()
		m.notifyEnd(friendID, false)

	case call.State() == 0 && state != 0:
		// Our state was still null: we started the call and the peer
		// just picked up.
		call.SetActive(true)
		video := call.VideoEnabled()
		call.SetState(state)
		m.registry.mu.Unlock()
		m.notifyStart(friendID, video)

	case call.State().Has(CallStateSendingVideo) && !state.Has(CallStateSendingVideo):
		logrus.WithFields(logrus.Fields{
			"function":  "OnCallStateChanged",
			"friend_id": friendID,
		}).Debug("Friend stopped sending video")
		call.VideoSource().Stop()
		call.SetState(state)
		m.registry.mu.Unlock()

	case !call.State().Has(CallStateSendingVideo) && state.Has(CallStateSendingVideo):
		call.VideoSource().Restart()
		call.SetState(state)
		m.registry.mu.Unlock()

	default:
		call.SetState(state)
		m.registry.mu.Unlock()
	}
}

// OnAudioBitrate handles the transport's audio bitrate recommendation.
// Recommendations are logged and ignored; the configured bitrate stands.
func (m *Manager) OnAudioBitrate(friendID uint32, rate uint32) {
	logrus.WithFields(logrus.Fields{
		"function":  "OnAudioBitrate",
		"friend_id": friendID,
		"rate":      rate,
	}).Debug("Recommended audio bitrate received, ignoring it")
}

// OnVideoBitrate handles the transport's video bitrate recommendation.
// Recommendations are logged and ignored; the configured tier stands.
func (m *Manager) OnVideoBitrate(friendID uint32, rate uint32) {
	logrus.WithFields(logrus.Fields{
		"function":  "OnVideoBitrate",
		"friend_id": friendID,
		"rate":      rate,
	}).Debug("Recommended video bitrate received, ignoring it")
}

// OnAudioFrame handles one received audio frame.
//
// The frame first feeds the echo canceller's far-end reference buffer
// (sub-chunked inside the pipeline), then goes to the call's playback
// sink. A muted output drops the frame before either step.
func (m *Manager) OnAudioFrame(friendID uint32, pcm []int16, sampleCount int, channels uint8, rate uint32) {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	call, ok := m.registry.Peer(friendID)
	if !ok {
		return
	}

	if call.MuteVolume() {
		return
	}

	m.dsp.BufferPlayback(pcm, sampleCount, channels, rate)

	call.PlayAudio(pcm, channels, rate)
}

// OnVideoFrame handles one received video frame, pushing it into the
// call's video stream for the UI.
func (m *Manager) OnVideoFrame(friendID uint32, frame *VideoFrame) {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	call, ok := m.registry.Peer(friendID)
	if !ok {
		return
	}

	call.VideoSource().PushFrame(frame)
}

// OnGroupAudioFrame handles one group-audio payload from a group peer,
// decoding and playing it through the peer's own sink.
func (m *Manager) OnGroupAudioFrame(groupID uint32, peer PeerKey, data []byte, channels uint8, rate uint32) {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	call, ok := m.registry.Group(groupID)
	if !ok {
		return
	}

	if call.MuteVolume() || !call.IsActive() {
		return
	}

	call.PlayPeerAudio(peer, data, channels, rate)
}

// OnCommInfo handles encoder telemetry. A current-bitrate report means the
// transport adapted the encoder on its own; the configured bitrate tier is
// reasserted so adaptation cannot silently override configuration.
func (m *Manager) OnCommInfo(friendID uint32, info CommInfo, value int64) {
	if info != CommEncoderCurrentBitrate {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function":  "OnCommInfo",
		"friend_id": friendID,
		"bitrate":   value,
	}).Trace("Encoder bitrate telemetry, reasserting configured tier")

	m.applyBitrateTier(friendID)
}
