package callcore

import (
	"time"

	"github.com/sirupsen/logrus"
)

// minIterationInterval is the floor below which the transport's requested
// interval is treated as too aggressive and stretched, trading a little
// latency for a lot less CPU spin.
const (
	minIterationInterval     = 5 * time.Millisecond
	relaxedIterationInterval = 10 * time.Millisecond
)

// Start launches the media-iteration loop on its own goroutine. The loop
// drives the transport's audio/video machinery at the cadence the transport
// requests, clamped by minIterationInterval.
//
// Returns ErrAlreadyRunning when the loop is already live.
func (m *Manager) Start() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	logrus.WithFields(logrus.Fields{
		"function": "Start",
	}).Info("Starting media iteration loop")

	m.stopCh = make(chan struct{})
	m.running = true

	m.wg.Add(1)
	go m.iterateLoop(m.stopCh)

	return nil
}

// Stop tears down every live call, then stops the iteration loop and waits
// for it to exit. Lingering calls at shutdown are a caller bug and get a log
// line, but are cancelled anyway so the transport side is not left ringing.
//
// Returns ErrNotRunning when the loop was never started or already stopped.
func (m *Manager) Stop() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if !m.running {
		return ErrNotRunning
	}

	logrus.WithFields(logrus.Fields{
		"function": "Stop",
	}).Info("Stopping media iteration loop")

	m.registry.mu.RLock()
	peerIDs := m.registry.PeerIDs()
	groupIDs := m.registry.GroupIDs()
	m.registry.mu.RUnlock()

	if len(peerIDs) > 0 || len(groupIDs) > 0 {
		logrus.WithFields(logrus.Fields{
			"function":    "Stop",
			"peer_calls":  len(peerIDs),
			"group_calls": len(groupIDs),
		}).Error("Calls should have ended before stopping the engine")
	}

	for _, friendID := range peerIDs {
		m.CancelCall(friendID)
	}
	for _, groupID := range groupIDs {
		m.LeaveGroupCall(groupID)
	}

	m.registry.mu.RLock()
	remaining := len(m.registry.PeerIDs()) + len(m.registry.GroupIDs())
	m.registry.mu.RUnlock()
	if remaining > 0 {
		logrus.WithFields(logrus.Fields{
			"function":  "Stop",
			"remaining": remaining,
		}).Error("Calls survived shutdown cancellation")
	}

	close(m.stopCh)
	m.wg.Wait()
	m.running = false

	return nil
}

// iterateLoop runs the transport's periodic media work until stopped. The
// transport reports how long until it next needs servicing; sub-threshold
// intervals are relaxed to keep the loop from degenerating into a busy spin.
func (m *Manager) iterateLoop(stopCh <-chan struct{}) {
	defer m.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}

		interval := m.transport.Iterate()
		if interval <= minIterationInterval {
			interval = relaxedIterationInterval
		}
		timer.Reset(interval)
	}
}
