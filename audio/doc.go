// Package audio implements the in-line audio processing used by the call
// engine: sample-rate conversion between the engine's native 48 kHz and the
// 16 kHz the filter engines operate at, echo cancellation and noise
// suppression assembled into a capture pipeline, and Opus decoding for
// group-audio payloads.
//
// The Pipeline is an explicitly constructed service with its own
// synchronization; nothing in this package keeps process-global state.
// Filter work happens in 10 ms sub-chunks at the filter rate, and any
// engine failure degrades to passing audio through unfiltered rather than
// dropping it.
package audio
