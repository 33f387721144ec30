package emu

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/go-faster/errors"

	"nescore/emu/log"
)

const (
	wavBitDepth = 16
	wavPCM      = 1
)

// WavWriter is an AudioSink writing a 16-bit mono PCM WAV file. The file is
// only valid once closed.
type WavWriter struct {
	path string
	f    *os.File
	enc  *wav.Encoder
	buf  audio.IntBuffer
	n    int
}

// NewWavWriter creates the WAV file at path.
func NewWavWriter(path string, sampleRate int) (*WavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "wav")
	}

	return &WavWriter{
		path: path,
		f:    f,
		enc:  wav.NewEncoder(f, sampleRate, wavBitDepth, 1, wavPCM),
		buf: audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: wavBitDepth,
		},
	}, nil
}

// WriteSamples implements AudioSink.
func (w *WavWriter) WriteSamples(samples []int16) error {
	w.buf.Data = w.buf.Data[:0]
	for _, s := range samples {
		w.buf.Data = append(w.buf.Data, int(s))
	}
	if err := w.enc.Write(&w.buf); err != nil {
		return errors.Wrap(err, "wav")
	}
	w.n += len(samples)
	return nil
}

// Close finalizes the WAV header and closes the file.
func (w *WavWriter) Close() error {
	if err := w.enc.Close(); err != nil {
		w.f.Close()
		return errors.Wrap(err, "wav")
	}
	if err := w.f.Close(); err != nil {
		return errors.Wrap(err, "wav")
	}

	log.ModSound.InfoZ("Audio written").
		String("path", w.path).
		Int("samples", w.n).
		End()
	return nil
}
