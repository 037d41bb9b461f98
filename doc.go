// Package callcore implements the real-time audio/video call engine that
// sits on top of a peer-to-peer messaging transport.
//
// The engine manages the lifecycle of one-to-one and group calls, multiplexes
// call state across three concurrent execution contexts (the UI/control
// goroutine, the media-iteration goroutine, and the transport's own internal
// goroutine), and runs an in-line DSP pipeline over every audio frame sent
// and received (48kHz<->16kHz resampling, acoustic echo cancellation, noise
// suppression).
//
// The design follows a small number of hard rules:
//   - All structural call state lives in a Registry guarded by one
//     reader/writer lock; lookups take the read mode, insert/remove and state
//     transitions take the write mode.
//   - The DSP pipeline has its own mutex, distinct from the registry lock,
//     because it is touched from the capture and playback paths independently
//     of structural changes.
//   - UI-facing notifications are only ever emitted after all locks have been
//     released, so UI code may reenter the engine from the notification.
//   - Cancelling a call releases the registry lock around the blocking
//     transport control primitive and reacquires it afterwards; this is the
//     only lock-drop-and-reacquire in the engine and it exists to avoid
//     deadlocking against the transport's internal locking.
//
// The transport itself (signaling, media encoding, delivery) is an external
// collaborator reachable through the Transport interface, and it reports
// events back through the EventHandler capability interface implemented by
// the Manager. The echo-cancellation and noise-suppression algorithms are
// likewise external engines with a fixed call contract; see the audio
// subpackage.
package callcore
