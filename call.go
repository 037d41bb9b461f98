package callcore

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/audio"
)

// AudioSink consumes PCM audio for playback. Sinks are created by the
// AudioBackend and owned by the call that plays into them.
type AudioSink interface {
	// Play queues one PCM frame for playback.
	Play(pcm []int16, channels uint8, rate uint32)

	// Close releases the sink's playback resources.
	Close()
}

// AudioBackend is the audio device layer the engine plays received audio
// into. It must be set on the Manager before any call is started, answered
// or joined, and it must outlive the Manager.
type AudioBackend interface {
	// NewSink creates a playback sink for one audio stream.
	NewSink() (AudioSink, error)
}

// Call holds the state shared by peer and group calls. Fields are guarded
// by the call's own mutex so payload paths can read them while the registry
// lock is held in either mode.
type Call struct {
	mu           sync.RWMutex
	active       bool
	muteMic      bool
	muteVolume   bool
	videoEnabled bool
	state        CallState
}

// IsActive reports whether media is flowing for this call.
func (c *Call) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// SetActive marks the call active or inactive.
func (c *Call) SetActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = active
}

// MuteMic reports whether the call's input (microphone) is muted.
func (c *Call) MuteMic() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muteMic
}

// SetMuteMic mutes or unmutes the call's input.
func (c *Call) SetMuteMic(mute bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muteMic = mute
}

// MuteVolume reports whether the call's output (speaker) is muted.
func (c *Call) MuteVolume() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muteVolume
}

// SetMuteVolume mutes or unmutes the call's output.
func (c *Call) SetMuteVolume(mute bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muteVolume = mute
}

// VideoEnabled reports whether video was negotiated for this call.
func (c *Call) VideoEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.videoEnabled
}

// State returns the peer's current call-state bitmask.
func (c *Call) State() CallState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetState replaces the peer's call-state bitmask.
func (c *Call) SetState(state CallState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// PeerCall is a one-to-one call with a single friend. It owns the playback
// sink for received audio, the video stream handed to the UI for received
// video, and the null-video-bitrate sentinel used to restart suspended video
// sending.
type PeerCall struct {
	Call

	friendID    uint32
	sink        AudioSink
	videoSource *VideoStream

	// nullVideoBitrate is true after SendNoVideo zeroed the video bit
	// rate; the next outgoing frame restores VideoDefaultBitrate first.
	nullVideoBitrate bool
}

// newPeerCall creates a peer call bound to the shared audio backend.
// A nil error from backend.NewSink is not required for the call to function;
// playback is simply skipped without a sink (degraded mode).
func newPeerCall(friendID uint32, video bool, backend AudioBackend) *PeerCall {
	call := &PeerCall{
		friendID:    friendID,
		videoSource: NewVideoStream(),
	}
	call.videoEnabled = video

	sink, err := backend.NewSink()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "newPeerCall",
			"friend_id": friendID,
			"error":     err.Error(),
		}).Warn("Audio sink creation failed, playback disabled for call")
	} else {
		call.sink = sink
	}

	return call
}

// FriendID returns the friend this call is with.
func (c *PeerCall) FriendID() uint32 {
	return c.friendID
}

// VideoSource returns the stream of received video frames for this call.
func (c *PeerCall) VideoSource() *VideoStream {
	return c.videoSource
}

// NullVideoBitrate reports whether video sending is suspended and must be
// restarted by restoring the default bit rate.
func (c *PeerCall) NullVideoBitrate() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nullVideoBitrate
}

// SetNullVideoBitrate sets the suspended-video sentinel.
func (c *PeerCall) SetNullVideoBitrate(null bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nullVideoBitrate = null
}

// PlayAudio hands one received PCM frame to the call's playback sink.
func (c *PeerCall) PlayAudio(pcm []int16, channels uint8, rate uint32) {
	if c.sink == nil {
		return
	}
	c.sink.Play(pcm, channels, rate)
}

// close releases the call's playback resources. Called with the registry
// write lock held, on removal from the registry.
func (c *PeerCall) close() {
	if c.sink != nil {
		c.sink.Close()
		c.sink = nil
	}
	c.videoSource.Close()
}

// groupPeer is the per-participant playback state of a group call: one
// playback sink and one Opus decoder, since decoder state is per stream.
type groupPeer struct {
	sink AudioSink
	dec  *audio.Decoder
}

// GroupCall is a multi-party call. Group audio is mixed transport-side, so
// the engine only keeps per-peer playback state and no video source.
type GroupCall struct {
	Call

	groupID uint32
	backend AudioBackend

	peersMu sync.Mutex
	peers   map[PeerKey]*groupPeer
}

// newGroupCall creates a group call bound to the shared audio backend.
func newGroupCall(groupID uint32, backend AudioBackend) *GroupCall {
	return &GroupCall{
		groupID: groupID,
		backend: backend,
		peers:   make(map[PeerKey]*groupPeer),
	}
}

// GroupID returns the group this call belongs to.
func (c *GroupCall) GroupID() uint32 {
	return c.groupID
}

// PlayPeerAudio decodes one Opus payload from a group peer and plays it
// into that peer's sink, creating the per-peer state on first use.
func (c *GroupCall) PlayPeerAudio(peer PeerKey, data []byte, channels uint8, rate uint32) {
	c.peersMu.Lock()
	p, ok := c.peers[peer]
	if !ok {
		p = &groupPeer{dec: audio.NewDecoder()}
		sink, err := c.backend.NewSink()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "PlayPeerAudio",
				"group_id": c.groupID,
				"error":    err.Error(),
			}).Warn("Audio sink creation failed for group peer")
		} else {
			p.sink = sink
		}
		c.peers[peer] = p
	}
	c.peersMu.Unlock()

	pcm, decodedRate, err := p.dec.Decode(data)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "PlayPeerAudio",
			"group_id": c.groupID,
			"error":    err.Error(),
		}).Warn("Group audio decode failed, dropping frame")
		return
	}
	if decodedRate != 0 {
		rate = decodedRate
	}

	if p.sink != nil {
		p.sink.Play(pcm, channels, rate)
	}
}

// RemovePeer invalidates the playback state for a peer that left the group.
func (c *GroupCall) RemovePeer(peer PeerKey) {
	c.peersMu.Lock()
	defer c.peersMu.Unlock()

	p, ok := c.peers[peer]
	if !ok {
		return
	}
	if p.sink != nil {
		p.sink.Close()
	}
	delete(c.peers, peer)
}

// PeerCount returns the number of group peers with playback state.
func (c *GroupCall) PeerCount() int {
	c.peersMu.Lock()
	defer c.peersMu.Unlock()
	return len(c.peers)
}

// close releases all per-peer playback resources. Called with the registry
// write lock held, on removal from the registry.
func (c *GroupCall) close() {
	c.peersMu.Lock()
	defer c.peersMu.Unlock()

	for key, p := range c.peers {
		if p.sink != nil {
			p.sink.Close()
		}
		delete(c.peers, key)
	}
}
