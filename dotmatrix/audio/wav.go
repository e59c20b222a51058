package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFlushFrames = 4096

// WAVRecorder taps the APU's output and streams it to a RIFF/WAVE file.
// It installs itself as the APU capture hook; Close detaches it and
// finalises the file header.
type WAVRecorder struct {
	apu  *APU
	file *os.File
	enc  *wav.Encoder
	buf  *goaudio.IntBuffer
	err  error
}

// NewWAVRecorder starts recording APU output to the given path.
func NewWAVRecorder(path string, apu *APU) (*WAVRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("audio: create wav file: %w", err)
	}

	rec := &WAVRecorder{
		apu:  apu,
		file: f,
		enc:  wav.NewEncoder(f, SampleRate, 16, 2, 1),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: 2,
				SampleRate:  SampleRate,
			},
			SourceBitDepth: 16,
		},
	}
	apu.SetCapture(rec.frame)
	return rec, nil
}

func (rec *WAVRecorder) frame(left, right int16) {
	if rec.err != nil {
		return
	}
	rec.buf.Data = append(rec.buf.Data, int(left), int(right))
	if len(rec.buf.Data) >= wavFlushFrames*2 {
		rec.flush()
	}
}

func (rec *WAVRecorder) flush() {
	if len(rec.buf.Data) == 0 {
		return
	}
	if err := rec.enc.Write(rec.buf); err != nil {
		rec.err = fmt.Errorf("audio: write wav data: %w", err)
	}
	rec.buf.Data = rec.buf.Data[:0]
}

// Close stops capturing, flushes buffered samples and finalises the
// file. The first error encountered during recording is returned.
func (rec *WAVRecorder) Close() error {
	rec.apu.SetCapture(nil)
	rec.flush()

	err := rec.err
	if cerr := rec.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := rec.file.Close(); err == nil {
		err = cerr
	}
	return err
}
