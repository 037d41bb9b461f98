package callcore

import "errors"

// Sentinel errors for callcore operations. These enable reliable error
// classification with errors.Is().

// Construction errors.
var (
	// ErrNilTransport indicates the Manager was constructed without a
	// transport.
	ErrNilTransport = errors.New("transport cannot be nil")

	// ErrNilPipeline indicates the Manager was constructed without a DSP
	// pipeline.
	ErrNilPipeline = errors.New("audio pipeline cannot be nil")

	// ErrNilSettings indicates the Manager was constructed without a
	// settings provider.
	ErrNilSettings = errors.New("settings provider cannot be nil")
)

// Lifecycle errors.
var (
	// ErrAlreadyRunning indicates Start was called on a running manager.
	ErrAlreadyRunning = errors.New("manager is already running")

	// ErrNotRunning indicates Stop was called on a stopped manager.
	ErrNotRunning = errors.New("manager is not running")
)

// Transport-side errors. The transport returns its own error values; only
// ErrTransportBusy receives special handling (bounded retry on the audio
// send path), so it is the one sentinel the transport contract requires.
var (
	// ErrTransportBusy indicates the transport could not take its internal
	// lock for a frame send. Transient; the frame may be retried.
	ErrTransportBusy = errors.New("transport lock busy")
)
