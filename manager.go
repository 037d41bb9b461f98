package callcore

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/audio"
)

// Manager is the call orchestrator. It owns the call registry, the transport
// handle and the media-iteration loop, exposes the public call-control API
// to the UI layer, and receives transport events as the EventHandler.
//
// All boolean-returning operations fail safe: a missing call, a muted call
// or a transport rejection produce false or a no-op, never a panic. The
// distinction between "nothing to send" (true) and a real failure (false)
// on the frame paths is deliberate and matches the documented contract.
type Manager struct {
	transport Transport
	registry  *Registry
	dsp       *audio.Pipeline
	settings  Settings

	// audioBackend is swapped atomically because it is read on every
	// incoming frame and written only at wiring time.
	audioBackend atomic.Value // backendHolder

	notifyMu     sync.RWMutex
	inviteNotify func(friendID uint32, video bool)
	startNotify  func(friendID uint32, video bool)
	endNotify    func(friendID uint32, abnormal bool)

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// backendHolder wraps the AudioBackend interface so atomic.Value always
// stores one concrete type.
type backendHolder struct {
	backend AudioBackend
}

// NewManager creates the call orchestrator.
//
// The DSP pipeline is an explicitly constructed, owned service passed in by
// reference; it carries its own internal synchronization. The settings
// provider is read live on every operation that consumes configuration.
//
// Returns an error when any collaborator is nil; the caller must not proceed
// with a nil Manager.
func NewManager(transport Transport, dsp *audio.Pipeline, settings Settings) (*Manager, error) {
	logrus.WithFields(logrus.Fields{
		"function": "NewManager",
	}).Info("Creating call engine manager")

	if transport == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewManager",
			"error":    ErrNilTransport.Error(),
		}).Error("Manager construction failed")
		return nil, ErrNilTransport
	}
	if dsp == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewManager",
			"error":    ErrNilPipeline.Error(),
		}).Error("Manager construction failed")
		return nil, ErrNilPipeline
	}
	if settings == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewManager",
			"error":    ErrNilSettings.Error(),
		}).Error("Manager construction failed")
		return nil, ErrNilSettings
	}

	m := &Manager{
		transport: transport,
		registry:  NewRegistry(),
		dsp:       dsp,
		settings:  settings,
	}
	m.audioBackend.Store(backendHolder{})

	transport.RegisterHandler(m)

	logrus.WithFields(logrus.Fields{
		"function": "NewManager",
	}).Info("Call engine manager created")

	return m, nil
}

// SetAudio sets the audio backend used for playback sinks. Must be called
// before starting, answering or joining any call; the backend must outlive
// the Manager.
func (m *Manager) SetAudio(backend AudioBackend) {
	m.audioBackend.Store(backendHolder{backend: backend})
}

// Audio returns the audio backend currently in use, or nil if unset. Needed
// when the engine is restarted and the restarting code wants to keep the
// same backend.
func (m *Manager) Audio() AudioBackend {
	return m.audioBackend.Load().(backendHolder).backend
}

// StartCall initiates a call with a friend.
//
// Returns false when a call with the friend already exists, when the audio
// backend is unset, or when the transport rejects the initiation. On success
// the new call is registered and the configured bitrate tier is applied to
// the transport's video encoder.
func (m *Manager) StartCall(friendID uint32, video bool) bool {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "StartCall",
		"friend_id": friendID,
		"video":     video,
	}).Debug("Starting call")

	if _, exists := m.registry.Peer(friendID); exists {
		logrus.WithFields(logrus.Fields{
			"function":  "StartCall",
			"friend_id": friendID,
		}).Warn("Can't start call, we're already in this call")
		return false
	}

	backend := m.Audio()
	if backend == nil {
		logrus.WithFields(logrus.Fields{
			"function":  "StartCall",
			"friend_id": friendID,
		}).Error("Audio backend must be set before starting a call")
		return false
	}

	videoBitrate := uint32(0)
	if video {
		videoBitrate = VideoDefaultBitrate
	}
	if !parseTransportErr("call", friendID, m.transport.Call(friendID, m.settings.AudioBitrate(), videoBitrate)) {
		return false
	}

	call := newPeerCall(friendID, video, backend)
	m.registry.InsertPeer(friendID, call)

	m.applyBitrateTier(friendID)

	return true
}

// AnswerCall accepts a pending incoming call. The invite event has already
// populated the registry entry; answering a friend without one fails.
//
// On transport acceptance the call is marked active and the bitrate tier is
// applied. On transport rejection a compensating cancel is issued and the
// registry entry is removed, keeping transport and local state consistent.
func (m *Manager) AnswerCall(friendID uint32, video bool) bool {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "AnswerCall",
		"friend_id": friendID,
		"video":     video,
	}).Debug("Answering call")

	call, ok := m.registry.Peer(friendID)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function":  "AnswerCall",
			"friend_id": friendID,
		}).Warn("No pending call invite to answer")
		return false
	}

	videoBitrate := uint32(0)
	if video {
		videoBitrate = VideoDefaultBitrate
	}
	if err := m.transport.Answer(friendID, m.settings.AudioBitrate(), videoBitrate); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "AnswerCall",
			"friend_id": friendID,
			"error":     err.Error(),
		}).Warn("Failed to answer call, cancelling")

		parseTransportErr("call control", friendID, m.transport.CallControl(friendID, CallControlCancel))
		m.registry.RemovePeer(friendID)
		return false
	}

	call.SetActive(true)
	m.applyBitrateTier(friendID)

	return true
}

// CancelCall rejects or hangs up the call with a friend.
//
// The registry write lock is released before the blocking transport control
// call and reacquired afterwards. The transport takes its own internal lock
// during call control and may concurrently deliver events that need the
// registry lock; holding ours across the call can deadlock. This is the only
// drop-and-reacquire in the engine, preserved deliberately.
//
// The cancel control is issued even when no registry entry exists (the
// transport may still consider the call live); false is returned when the
// transport reports the control failed.
func (m *Manager) CancelCall(friendID uint32) bool {
	m.registry.mu.Lock()

	logrus.WithFields(logrus.Fields{
		"function":  "CancelCall",
		"friend_id": friendID,
	}).Debug("Cancelling call")

	m.registry.mu.Unlock()
	err := m.transport.CallControl(friendID, CallControlCancel)
	m.registry.mu.Lock()

	if !parseTransportErr("call control", friendID, err) {
		m.registry.mu.Unlock()
		return false
	}

	m.registry.RemovePeer(friendID)
	m.registry.mu.Unlock()

	m.notifyEnd(friendID, false)
	return true
}

// TimeoutCall hangs up a call that outlived its ring timeout.
func (m *Manager) TimeoutCall(friendID uint32) {
	if !m.CancelCall(friendID) {
		logrus.WithFields(logrus.Fields{
			"function":  "TimeoutCall",
			"friend_id": friendID,
		}).Warn("Failed to timeout call")
		return
	}
	logrus.WithFields(logrus.Fields{
		"function":  "TimeoutCall",
		"friend_id": friendID,
	}).Debug("Call timed out")
}

// ToggleMuteCallInput toggles the microphone mute state of a peer call.
// Returns the new mute state, or false when no call exists.
func (m *Manager) ToggleMuteCallInput(friendID uint32) bool {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	call, ok := m.registry.Peer(friendID)
	if !ok {
		return false
	}
	muted := !call.MuteMic()
	call.SetMuteMic(muted)
	return muted
}

// ToggleMuteCallOutput toggles the speaker mute state of a peer call.
// Returns the new mute state, or false when no call exists.
func (m *Manager) ToggleMuteCallOutput(friendID uint32) bool {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	call, ok := m.registry.Peer(friendID)
	if !ok {
		return false
	}
	muted := !call.MuteVolume()
	call.SetMuteVolume(muted)
	return muted
}

// IsCallStarted reports whether a call exists for the friend, active or not.
func (m *Manager) IsCallStarted(friendID uint32) bool {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	_, ok := m.registry.Peer(friendID)
	return ok
}

// IsCallActive reports whether a call exists for the friend and media is
// flowing.
func (m *Manager) IsCallActive(friendID uint32) bool {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	call, ok := m.registry.Peer(friendID)
	return ok && call.IsActive()
}

// IsCallVideoEnabled reports whether video was negotiated for the friend's
// call.
func (m *Manager) IsCallVideoEnabled(friendID uint32) bool {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	call, ok := m.registry.Peer(friendID)
	return ok && call.VideoEnabled()
}

// IsCallInputMuted reports the microphone mute state of the friend's call.
func (m *Manager) IsCallInputMuted(friendID uint32) bool {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	call, ok := m.registry.Peer(friendID)
	return ok && call.MuteMic()
}

// IsCallOutputMuted reports the speaker mute state of the friend's call.
func (m *Manager) IsCallOutputMuted(friendID uint32) bool {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	call, ok := m.registry.Peer(friendID)
	return ok && call.MuteVolume()
}

// VideoSourceFromCall returns the received-video stream for the friend's
// call, or nil when no call exists (possibly already cancelled).
func (m *Manager) VideoSourceFromCall(friendID uint32) *VideoStream {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	call, ok := m.registry.Peer(friendID)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function":  "VideoSourceFromCall",
			"friend_id": friendID,
		}).Warn("No such call, possibly cancelled")
		return nil
	}
	return call.VideoSource()
}

// SendNoVideo signals to all peers that we are not sending video anymore by
// zeroing the video bit rate. The next outgoing frame to a peer restores
// the default bit rate and cancels this.
func (m *Manager) SendNoVideo() {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SendNoVideo",
	}).Debug("Signaling end of video sending")

	for _, friendID := range m.registry.PeerIDs() {
		call, _ := m.registry.Peer(friendID)
		if !parseTransportErr("set video bitrate", friendID, m.transport.SetVideoBitrate(friendID, 0)) {
			continue
		}
		call.SetNullVideoBitrate(true)
	}
}

// JoinGroupCall starts a call in an existing group chat. Refuses (with a
// log line, returning false) when already in the group call or when the
// audio backend is unset.
func (m *Manager) JoinGroupCall(groupID uint32) bool {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "JoinGroupCall",
		"group_id": groupID,
	}).Debug("Joining group call")

	backend := m.Audio()
	if backend == nil {
		logrus.WithFields(logrus.Fields{
			"function": "JoinGroupCall",
			"group_id": groupID,
		}).Error("Audio backend must be set before joining a group call")
		return false
	}

	call := newGroupCall(groupID, backend)
	if !m.registry.InsertGroup(groupID, call) {
		logrus.WithFields(logrus.Fields{
			"function": "JoinGroupCall",
			"group_id": groupID,
		}).Warn("This group call already exists, not joining")
		return false
	}
	call.SetActive(true)
	return true
}

// LeaveGroupCall stops the group call. It does not leave the group itself.
func (m *Manager) LeaveGroupCall(groupID uint32) {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "LeaveGroupCall",
		"group_id": groupID,
	}).Debug("Leaving group call")

	m.registry.RemoveGroup(groupID)
}

// MuteGroupCallInput mutes or unmutes the group call's microphone.
func (m *Manager) MuteGroupCallInput(groupID uint32, mute bool) {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	if call, ok := m.registry.Group(groupID); ok {
		call.SetMuteMic(mute)
	}
}

// MuteGroupCallOutput mutes or unmutes the group call's speaker.
func (m *Manager) MuteGroupCallOutput(groupID uint32, mute bool) {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	if call, ok := m.registry.Group(groupID); ok {
		call.SetMuteVolume(mute)
	}
}

// IsGroupCallInputMuted reports the group call's microphone mute state.
func (m *Manager) IsGroupCallInputMuted(groupID uint32) bool {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	call, ok := m.registry.Group(groupID)
	return ok && call.MuteMic()
}

// IsGroupCallOutputMuted reports the group call's speaker mute state.
func (m *Manager) IsGroupCallOutputMuted(groupID uint32) bool {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	call, ok := m.registry.Group(groupID)
	return ok && call.MuteVolume()
}

// IsGroupCallStarted reports whether a call exists for the group.
func (m *Manager) IsGroupCallStarted(groupID uint32) bool {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	_, ok := m.registry.Group(groupID)
	return ok
}

// InvalidateGroupPeerSource drops the playback state of a group peer that
// left, so their source is not replayed if they rejoin.
func (m *Manager) InvalidateGroupPeerSource(groupID uint32, peer PeerKey) {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	call, ok := m.registry.Group(groupID)
	if !ok {
		return
	}
	call.RemovePeer(peer)
}

// OnInviteNotify installs the UI notification for incoming call invites.
// Notifications are emitted with no engine locks held.
func (m *Manager) OnInviteNotify(fn func(friendID uint32, video bool)) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.inviteNotify = fn
}

// OnStartNotify installs the UI notification for calls that became active.
func (m *Manager) OnStartNotify(fn func(friendID uint32, video bool)) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.startNotify = fn
}

// OnEndNotify installs the UI notification for ended calls. The abnormal
// flag distinguishes error teardown from a normal hangup.
func (m *Manager) OnEndNotify(fn func(friendID uint32, abnormal bool)) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.endNotify = fn
}

func (m *Manager) notifyInvite(friendID uint32, video bool) {
	m.notifyMu.RLock()
	fn := m.inviteNotify
	m.notifyMu.RUnlock()
	if fn != nil {
		fn(friendID, video)
	}
}

func (m *Manager) notifyStart(friendID uint32, video bool) {
	m.notifyMu.RLock()
	fn := m.startNotify
	m.notifyMu.RUnlock()
	if fn != nil {
		fn(friendID, video)
	}
}

func (m *Manager) notifyEnd(friendID uint32, abnormal bool) {
	m.notifyMu.RLock()
	fn := m.endNotify
	m.notifyMu.RUnlock()
	if fn != nil {
		fn(friendID, abnormal)
	}
}
