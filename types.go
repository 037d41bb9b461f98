package callcore

// Engine-wide audio constants. The engine's native rate is fixed at 48kHz
// mono for the filter path; the DSP engines operate at 16kHz.
const (
	// AudioSampleRate is the engine's native PCM sample rate in Hz.
	AudioSampleRate = 48000

	// FilterSampleRate is the sample rate the echo/noise engines expect.
	FilterSampleRate = 16000
)

// Video constants.
const (
	// VideoDefaultBitrate is the video bit rate used when starting or
	// restarting video sending, in kbit/s.
	VideoDefaultBitrate = 2500

	// MaxVideoWidth and MaxVideoHeight bound outgoing frame dimensions.
	// Larger frames are downscaled before transmission.
	MaxVideoWidth  = 1920
	MaxVideoHeight = 1080
)

// CallState is a bitmask describing what a peer is currently doing in a
// call, plus two terminal signals. The bit values are wire-compatible with
// the transport's call-state enumeration.
type CallState uint32

const (
	// CallStateError signals the call died abnormally. Terminal.
	CallStateError CallState = 1 << iota
	// CallStateFinished signals the call ended normally. Terminal.
	CallStateFinished
	// CallStateSendingAudio means the peer is sending audio to us.
	CallStateSendingAudio
	// CallStateSendingVideo means the peer is sending video to us.
	CallStateSendingVideo
	// CallStateAcceptingAudio means the peer accepts audio from us.
	CallStateAcceptingAudio
	// CallStateAcceptingVideo means the peer accepts video from us.
	CallStateAcceptingVideo
)

// Has reports whether all bits in mask are set in s.
func (s CallState) Has(mask CallState) bool {
	return s&mask == mask
}

// CallControl enumerates call control actions issued to the transport.
type CallControl uint32

const (
	// CallControlResume resumes a paused call.
	CallControlResume CallControl = iota
	// CallControlPause pauses an active call.
	CallControlPause
	// CallControlCancel rejects or hangs up the call.
	CallControlCancel
)

// EncoderOption enumerates per-peer video encoder options settable on the
// transport.
type EncoderOption uint32

const (
	// EncoderVideoBitrateAutoset toggles transport-side bitrate adaptation.
	EncoderVideoBitrateAutoset EncoderOption = iota
	// EncoderVideoMaxBitrate caps the video encoder bit rate.
	EncoderVideoMaxBitrate
	// EncoderVideoMinBitrate floors the video encoder bit rate.
	EncoderVideoMinBitrate
)

// CommInfo enumerates the transport's comm-info telemetry events.
type CommInfo uint32

const (
	// CommEncoderCurrentBitrate reports the encoder's current video bit
	// rate. The engine reasserts its configured bitrate tier when this
	// arrives so transport adaptation cannot override configuration.
	CommEncoderCurrentBitrate CommInfo = iota
	// CommDecoderCurrentBitrate reports the decoder's current bit rate.
	CommDecoderCurrentBitrate
)

// PeerKey identifies a group call participant by public key.
type PeerKey [32]byte
