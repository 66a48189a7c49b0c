package audiorec

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/robudan/acoustic-logger/internal/errors"
)

// wavWriter handles writing PCM frames to a minute-aligned WAV file,
// grounded on original_source/src/acquisition/audio_stream.py's
// WavWriter.
type wavWriter struct {
	stagingDir string
	sampleRate int

	file    *os.File
	encoder *wav.Encoder
	path    string
	start   time.Time
}

func newWavWriter(stagingDir string, sampleRate int) *wavWriter {
	return &wavWriter{stagingDir: stagingDir, sampleRate: sampleRate}
}

// fileName formats a minute start time the way the original's WavWriter
// does: "2006-01-02 15-04-00.wav".
func fileName(start time.Time, ext string) string {
	return fmt.Sprintf("%s.%s", start.Format("2006-01-02 15-04-00"), ext)
}

func (w *wavWriter) open(start time.Time) error {
	w.path = filepath.Join(w.stagingDir, fileName(start, "wav"))
	f, err := os.Create(w.path)
	if err != nil {
		return errors.New(err).
			Component("audiorec").
			Category(errors.CategoryFileIO).
			Context("path", w.path).
			Build()
	}
	w.file = f
	w.encoder = wav.NewEncoder(f, w.sampleRate, 16, 1, 1)
	w.start = start
	return nil
}

func (w *wavWriter) isOpen() bool { return w.file != nil }

func (w *wavWriter) write(samples []int16) error {
	if !w.isOpen() {
		return errors.Newf("audiorec: write called with no open WAV file").
			Component("audiorec").
			Category(errors.CategoryAudio).
			Build()
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: w.sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := w.encoder.Write(buf); err != nil {
		return errors.New(err).
			Component("audiorec").
			Category(errors.CategoryAudio).
			Context("path", w.path).
			Build()
	}
	return nil
}

// close finalizes the WAV file and returns its path, or ("", nil) if no
// file was open.
func (w *wavWriter) close() (string, error) {
	if !w.isOpen() {
		return "", nil
	}
	path := w.path
	err := w.encoder.Close()
	closeErr := w.file.Close()
	w.file = nil
	w.encoder = nil
	if err != nil {
		return path, errors.New(err).
			Component("audiorec").
			Category(errors.CategoryAudio).
			Context("path", path).
			Build()
	}
	if closeErr != nil {
		return path, errors.New(closeErr).
			Component("audiorec").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return path, nil
}
