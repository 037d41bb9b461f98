package audio

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// EchoConfig holds the echo canceller's runtime configuration. Mode selects
// how aggressively the adaptive filter converges (0 mild through 3 most
// aggressive).
type EchoConfig struct {
	Mode int
}

// EchoCanceller removes the far-end (playback) signal from the near-end
// (capture) signal. Far-end audio is fed through BufferFarend as it is
// played; Process then subtracts the echo estimate from captured chunks
// in place.
//
// Implementations are not safe for concurrent use; the Pipeline serializes
// access.
type EchoCanceller interface {
	// BufferFarend queues one chunk of played-back audio as the echo
	// reference.
	BufferFarend(samples []int16) error

	// Process cancels the echo estimate from one captured chunk in place.
	// delayMs is the estimated acoustic round-trip from playback to
	// capture.
	Process(samples []int16, delayMs int) error

	// SetConfig updates the canceller's runtime configuration.
	SetConfig(cfg EchoConfig) error

	// Close releases the canceller's resources.
	Close() error
}

// NoiseSuppressor attenuates stationary background noise in captured audio.
type NoiseSuppressor interface {
	// Process suppresses noise in one captured chunk in place.
	Process(samples []int16) error

	// SetPolicy updates the suppression aggressiveness (0 mild through 3
	// most aggressive).
	SetPolicy(mode int) error

	// Close releases the suppressor's resources.
	Close() error
}

// nlmsEchoCanceller is a normalized least-mean-squares adaptive filter over
// a ring buffer of far-end history. The filter length covers 16 ms at the
// filter rate, which is enough for the residual after the delay hint has
// aligned the reference.
type nlmsEchoCanceller struct {
	mode int

	farend   []float64
	writePos int

	weights []float64
}

const (
	aecFilterTaps = 256
	// Two seconds of far-end history at the filter rate, generous room
	// for the configured delay hint.
	aecFarendCapacity = 2 * FilterSampleRate
)

// aecStepSizes maps the echo mode to the NLMS adaptation step.
var aecStepSizes = [4]float64{0.05, 0.1, 0.2, 0.4}

// NewEchoCanceller creates the adaptive echo canceller.
func NewEchoCanceller(cfg EchoConfig) (EchoCanceller, error) {
	if cfg.Mode < 0 || cfg.Mode > 3 {
		return nil, fmt.Errorf("invalid echo mode: %d (must be 0-3)", cfg.Mode)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewEchoCanceller",
		"mode":     cfg.Mode,
	}).Debug("Creating echo canceller")

	return &nlmsEchoCanceller{
		mode:    cfg.Mode,
		farend:  make([]float64, aecFarendCapacity),
		weights: make([]float64, aecFilterTaps),
	}, nil
}

func (e *nlmsEchoCanceller) BufferFarend(samples []int16) error {
	if len(samples) == 0 {
		return fmt.Errorf("empty farend buffer")
	}
	for _, s := range samples {
		e.farend[e.writePos] = float64(s) / 32768.0
		e.writePos = (e.writePos + 1) % len(e.farend)
	}
	return nil
}

func (e *nlmsEchoCanceller) Process(samples []int16, delayMs int) error {
	if len(samples) == 0 {
		return fmt.Errorf("empty nearend buffer")
	}
	if delayMs < 0 {
		delayMs = 0
	}

	delaySamples := delayMs * FilterSampleRate / 1000
	step := aecStepSizes[e.mode]

	// Read position of the reference aligned with the first near-end
	// sample: the far-end audio played delayMs ago.
	refPos := e.writePos - delaySamples - len(samples)

	for i := range samples {
		// Echo estimate from the adaptive filter over the reference
		// window ending at the aligned position.
		var estimate, energy float64
		for t := 0; t < aecFilterTaps; t++ {
			idx := refPos + i - t
			idx = ((idx % len(e.farend)) + len(e.farend)) % len(e.farend)
			ref := e.farend[idx]
			estimate += e.weights[t] * ref
			energy += ref * ref
		}

		near := float64(samples[i]) / 32768.0
		residual := near - estimate

		// NLMS weight update, normalized by reference energy.
		norm := step / (energy + 1e-6)
		for t := 0; t < aecFilterTaps; t++ {
			idx := refPos + i - t
			idx = ((idx % len(e.farend)) + len(e.farend)) % len(e.farend)
			e.weights[t] += norm * residual * e.farend[idx]
		}

		out := residual * 32767.0
		if out > 32767.0 {
			out = 32767.0
		} else if out < -32768.0 {
			out = -32768.0
		}
		samples[i] = int16(out)
	}

	return nil
}

func (e *nlmsEchoCanceller) SetConfig(cfg EchoConfig) error {
	if cfg.Mode < 0 || cfg.Mode > 3 {
		return fmt.Errorf("invalid echo mode: %d (must be 0-3)", cfg.Mode)
	}
	e.mode = cfg.Mode
	return nil
}

func (e *nlmsEchoCanceller) Close() error {
	e.farend = nil
	e.weights = nil
	return nil
}

// energyNoiseSuppressor is a noise gate with an adaptive floor estimate:
// the quietest smoothed chunk energy seen recently is taken as the noise
// floor, and chunks near the floor are attenuated toward a mode-dependent
// minimum gain.
type energyNoiseSuppressor struct {
	mode int

	floor    float64
	smoothed float64
	primed   bool
}

// nsProfiles maps the suppression mode to (threshold multiple of the noise
// floor, minimum gain applied to sub-threshold audio).
var nsProfiles = [4]struct {
	threshold float64
	minGain   float64
}{
	{threshold: 1.5, minGain: 0.50},
	{threshold: 2.0, minGain: 0.30},
	{threshold: 2.5, minGain: 0.15},
	{threshold: 3.0, minGain: 0.05},
}

// NewNoiseSuppressor creates the energy-gate noise suppressor.
func NewNoiseSuppressor(mode int) (NoiseSuppressor, error) {
	if mode < 0 || mode > 3 {
		return nil, fmt.Errorf("invalid noise suppression mode: %d (must be 0-3)", mode)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewNoiseSuppressor",
		"mode":     mode,
	}).Debug("Creating noise suppressor")

	return &energyNoiseSuppressor{mode: mode}, nil
}

func (n *energyNoiseSuppressor) Process(samples []int16) error {
	if len(samples) == 0 {
		return fmt.Errorf("empty sample buffer")
	}

	var sum float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(samples)))

	if !n.primed {
		n.floor = rms
		n.smoothed = rms
		n.primed = true
	} else {
		n.smoothed = 0.9*n.smoothed + 0.1*rms
		if n.smoothed < n.floor {
			// Fast tracking downward, the floor should hug quiet
			// passages.
			n.floor = n.smoothed
		} else {
			// Slow upward creep so the floor recovers when the
			// environment gets louder.
			n.floor += (n.smoothed - n.floor) * 0.001
		}
	}

	profile := nsProfiles[n.mode]
	threshold := n.floor * profile.threshold

	gain := 1.0
	if rms < threshold && threshold > 0 {
		gain = profile.minGain + (1.0-profile.minGain)*(rms/threshold)
	}
	if gain >= 1.0 {
		return nil
	}

	for i, s := range samples {
		samples[i] = int16(float64(s) * gain)
	}
	return nil
}

func (n *energyNoiseSuppressor) SetPolicy(mode int) error {
	if mode < 0 || mode > 3 {
		return fmt.Errorf("invalid noise suppression mode: %d (must be 0-3)", mode)
	}
	n.mode = mode
	return nil
}

func (n *energyNoiseSuppressor) Close() error {
	return nil
}
