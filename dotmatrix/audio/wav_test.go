package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAVRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	a := New()

	rec, err := NewWAVRecorder(path, a)
	require.NoError(t, err)

	// half a second of emulated audio
	a.Tick(cpuHz / 2)
	require.NoError(t, rec.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	require.NoError(t, dec.Err())
	assert.Equal(t, uint32(SampleRate), dec.SampleRate)
	assert.Equal(t, uint16(2), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)

	dur, err := dec.Duration()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, dur.Seconds(), 0.01)
}

func TestWAVRecorderDetachesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	a := New()

	rec, err := NewWAVRecorder(path, a)
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	// no capture hook left behind
	assert.Nil(t, a.capture)
}

func TestWAVRecorderBadPath(t *testing.T) {
	_, err := NewWAVRecorder(filepath.Join(t.TempDir(), "missing", "out.wav"), New())
	assert.Error(t, err)
}
