// Package audiorec implements AudioRecorder (spec component C4):
// minute-aligned PCM capture, rotation, transcode, and staging.
// Grounded on original_source/src/acquisition/audio_stream.py's
// AudioStream + WavWriter, with transcoding delegated to the teacher's
// internal/audiocore/utils/ffmpeg process manager instead of pydub.
package audiorec

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robudan/acoustic-logger/internal/clock"
	"github.com/robudan/acoustic-logger/internal/audiocore/utils/ffmpeg"
	"github.com/robudan/acoustic-logger/internal/errors"
)

// watchdogAfter is how long the recorder tolerates a file staying open
// before force-rotating, defending against I/O stalls and clock jumps.
// Grounded on the original's literal 63s threshold.
const watchdogAfter = 63 * time.Second

// Config carries the Recorder's tunables, sourced from conf.Settings.Audio.
type Config struct {
	SampleRate   int
	StagingDir   string
	FinalDir     string
	FinalFormat  string // e.g. "mp3"
	FinalBitrate string // e.g. "256k"
	FFmpegPath   string
}

// Recorder captures mono 16-bit PCM audio, rotates WAV files on minute
// boundaries, and transcodes each closed file to the configured final
// format.
type Recorder struct {
	cfg    Config
	clock  *clock.Provider
	source Source
	ffmpeg ffmpeg.Manager
	log    *slog.Logger

	writer       *wavWriter
	currentStart time.Time
	transcodeSeq int
}

// New returns a Recorder bound to source (the capture device abstraction)
// and clk (for minute-boundary alignment and the watchdog).
func New(cfg Config, clk *clock.Provider, source Source, log *slog.Logger) (*Recorder, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(cfg.StagingDir, 0o755); err != nil {
		return nil, errors.New(err).Component("audiorec").Category(errors.CategoryFileIO).Build()
	}
	if err := os.MkdirAll(cfg.FinalDir, 0o755); err != nil {
		return nil, errors.New(err).Component("audiorec").Category(errors.CategoryFileIO).Build()
	}

	mgr := ffmpeg.NewManager(ffmpeg.ManagerConfig{MaxProcesses: 2})

	return &Recorder{
		cfg:    cfg,
		clock:  clk,
		source: source,
		ffmpeg: mgr,
		log:    log.With("service", "audiorec"),
		writer: newWavWriter(cfg.StagingDir, cfg.SampleRate),
	}, nil
}

// Run captures and rotates audio until ctx is cancelled, per spec §4.4's
// rotation and watchdog rules.
func (r *Recorder) Run(ctx context.Context) error {
	if err := r.ffmpeg.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = r.ffmpeg.Stop() }()

	for {
		if ctx.Err() != nil {
			r.rotate()
			return nil
		}

		aligned := r.clock.Now().Truncate(time.Minute)

		if !r.writer.isOpen() || aligned.After(r.currentStart) {
			r.rotate()
			if err := r.writer.open(aligned); err != nil {
				r.log.Error("open wav failed", "error", err)
			}
			r.currentStart = aligned
		}

		if !r.currentStart.IsZero() && r.clock.Now().Sub(r.currentStart) >= watchdogAfter {
			r.log.Warn("watchdog force-rotate: file open too long", "start", r.currentStart)
			r.rotate()
			newStart := r.clock.Now().Truncate(time.Minute)
			if err := r.writer.open(newStart); err != nil {
				r.log.Error("open wav failed", "error", err)
			}
			r.currentStart = newStart
		}

		samples, err := r.source.ReadChunk(ctx, r.cfg.SampleRate)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			r.log.Error("chunk read failed, retrying in 1s", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}

		if err := r.writer.write(samples); err != nil {
			r.log.Error("write failed", "error", err)
		}
	}
}

// rotate closes the currently-open WAV file (if any) and hands it off
// for transcoding. Transcode failures are logged but never block
// rotation (spec §4.4 failure policy).
func (r *Recorder) rotate() {
	path, err := r.writer.close()
	if err != nil {
		r.log.Error("close wav failed", "error", err)
	}
	if path == "" {
		return
	}
	if err := r.transcode(path); err != nil {
		r.log.Error("transcode failed, abandoning wav", "path", path, "error", err)
	}
}

func (r *Recorder) transcode(wavPath string) error {
	base := filepath.Base(wavPath)
	ext := filepath.Ext(base)
	finalName := base[:len(base)-len(ext)] + "." + r.cfg.FinalFormat
	finalPath := filepath.Join(r.cfg.FinalDir, finalName)

	r.transcodeSeq++
	id := fmt.Sprintf("audiorec-transcode-%d", r.transcodeSeq)

	proc, err := r.ffmpeg.CreateProcess(&ffmpeg.ProcessConfig{
		ID:           id,
		InputURL:     wavPath,
		OutputFormat: r.cfg.FinalFormat,
		SampleRate:   r.cfg.SampleRate,
		Channels:     1,
		BufferSize:   65536,
		ExtraArgs:    []string{"-b:a", r.cfg.FinalBitrate},
		FFmpegPath:   r.ffmpegPath(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = r.ffmpeg.RemoveProcess(id) }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := proc.Start(ctx); err != nil {
		return err
	}

	out, err := os.Create(finalPath)
	if err != nil {
		return errors.New(err).Component("audiorec").Category(errors.CategoryFileIO).Build()
	}
	defer out.Close()

	done := make(chan error, 1)
	go func() {
		for chunk := range proc.AudioOutput() {
			if _, werr := out.Write(chunk); werr != nil {
				done <- werr
				return
			}
		}
		done <- nil
	}()

	waitErr := proc.Wait()
	writeErr := <-done
	if waitErr != nil && waitErr.Error() != "signal: killed" {
		return errors.New(waitErr).Component("audiorec").Category(errors.CategoryAudio).Build()
	}
	if writeErr != nil && writeErr != io.EOF {
		return errors.New(writeErr).Component("audiorec").Category(errors.CategoryFileIO).Build()
	}

	return os.Remove(wavPath)
}

func (r *Recorder) ffmpegPath() string {
	if r.cfg.FFmpegPath != "" {
		return r.cfg.FFmpegPath
	}
	return "ffmpeg"
}
