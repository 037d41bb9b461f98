package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEchoCancellerValidation verifies mode bounds on creation and
// reconfiguration.
func TestEchoCancellerValidation(t *testing.T) {
	_, err := NewEchoCanceller(EchoConfig{Mode: -1})
	require.Error(t, err)
	_, err = NewEchoCanceller(EchoConfig{Mode: 4})
	require.Error(t, err)

	aec, err := NewEchoCanceller(EchoConfig{Mode: 2})
	require.NoError(t, err)
	require.Error(t, aec.SetConfig(EchoConfig{Mode: 7}))
	require.NoError(t, aec.SetConfig(EchoConfig{Mode: 0}))
	require.NoError(t, aec.Close())
}

// TestEchoCancellerEmptyBuffers verifies empty chunks are rejected.
func TestEchoCancellerEmptyBuffers(t *testing.T) {
	aec, err := NewEchoCanceller(EchoConfig{Mode: 1})
	require.NoError(t, err)
	defer aec.Close()

	require.Error(t, aec.BufferFarend(nil))
	require.Error(t, aec.Process(nil, 40))
}

// TestEchoCancellerConverges verifies the adaptive filter reduces a pure
// echo: with the near end an attenuated copy of the far end, residual energy
// after adaptation must be well below the input energy.
func TestEchoCancellerConverges(t *testing.T) {
	aec, err := NewEchoCanceller(EchoConfig{Mode: 3})
	require.NoError(t, err)
	defer aec.Close()

	chunk := filterChunk
	var inputEnergy, residualEnergy float64

	// Run enough chunks for the NLMS weights to adapt; measure the tail.
	const total = 200
	const measureFrom = 150
	for n := 0; n < total; n++ {
		far := make([]int16, chunk)
		for i := range far {
			far[i] = int16(8000 * math.Sin(2*math.Pi*float64(n*chunk+i)*220/FilterSampleRate))
		}
		require.NoError(t, aec.BufferFarend(far))

		near := make([]int16, chunk)
		for i := range far {
			near[i] = far[i] / 2
		}

		if n >= measureFrom {
			for _, s := range near {
				inputEnergy += float64(s) * float64(s)
			}
		}
		require.NoError(t, aec.Process(near, 0))
		if n >= measureFrom {
			for _, s := range near {
				residualEnergy += float64(s) * float64(s)
			}
		}
	}

	require.Less(t, residualEnergy, inputEnergy/2,
		"echo canceller should remove at least half the echo energy after adapting")
}

// TestNoiseSuppressorValidation verifies mode bounds.
func TestNoiseSuppressorValidation(t *testing.T) {
	_, err := NewNoiseSuppressor(-1)
	require.Error(t, err)
	_, err = NewNoiseSuppressor(4)
	require.Error(t, err)

	ns, err := NewNoiseSuppressor(2)
	require.NoError(t, err)
	require.Error(t, ns.SetPolicy(5))
	require.NoError(t, ns.SetPolicy(3))
	require.Error(t, ns.Process(nil))
	require.NoError(t, ns.Close())
}

// TestNoiseSuppressorAttenuatesQuietNoise verifies chunks near the noise
// floor are attenuated while loud speech-level chunks pass through.
func TestNoiseSuppressorAttenuatesQuietNoise(t *testing.T) {
	ns, err := NewNoiseSuppressor(3)
	require.NoError(t, err)
	defer ns.Close()

	// Prime the floor estimate with quiet noise.
	noise := make([]int16, filterChunk)
	for i := range noise {
		if i%2 == 0 {
			noise[i] = 50
		} else {
			noise[i] = -50
		}
	}
	for n := 0; n < 20; n++ {
		chunk := make([]int16, filterChunk)
		copy(chunk, noise)
		require.NoError(t, ns.Process(chunk))
	}

	// Another noise chunk now gets attenuated.
	quiet := make([]int16, filterChunk)
	copy(quiet, noise)
	require.NoError(t, ns.Process(quiet))
	require.Less(t, energy(quiet), energy(noise),
		"noise-level audio should be attenuated")

	// A loud chunk well above the floor passes through unchanged.
	loud := make([]int16, filterChunk)
	for i := range loud {
		loud[i] = int16(10000 * math.Sin(2*math.Pi*float64(i)*300/FilterSampleRate))
	}
	ref := make([]int16, filterChunk)
	copy(ref, loud)
	require.NoError(t, ns.Process(loud))
	require.Equal(t, ref, loud, "speech-level audio should pass through")
}

func energy(samples []int16) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return sum
}
