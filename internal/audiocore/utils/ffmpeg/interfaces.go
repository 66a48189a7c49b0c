package ffmpeg

import (
	"context"
	"time"
)

// Process represents a managed FFmpeg process
type Process interface {
	// ID returns the unique identifier for this process
	ID() string

	// Start starts the FFmpeg process
	Start(ctx context.Context) error

	// Stop gracefully stops the FFmpeg process
	Stop() error

	// Wait waits for the process to exit
	Wait() error

	// IsRunning returns true if the process is currently running
	IsRunning() bool

	// AudioOutput returns the channel for audio data output
	AudioOutput() <-chan []byte

	// ErrorOutput returns the channel for error messages
	ErrorOutput() <-chan error

	// Metrics returns current process metrics
	Metrics() ProcessMetrics
}

// ProcessMetrics contains runtime metrics for a process
type ProcessMetrics struct {
	StartTime    time.Time
	Uptime       time.Duration
	RestartCount int
	LastError    error
	LastRestart  time.Time
	BytesRead    int64
	FramesRead   int64
}

// ProcessConfig contains configuration for an FFmpeg process
type ProcessConfig struct {
	ID           string
	InputURL     string
	OutputFormat string
	SampleRate   int
	Channels     int
	BitDepth     int
	BufferSize   int
	ExtraArgs    []string
	FFmpegPath   string
}

// Manager manages a bounded set of one-shot FFmpeg transcode processes.
// Unlike a continuous-stream manager there is no restart policy or
// health-check loop: audiorec.Recorder creates one process per finished
// WAV recording, runs it to completion under its own timeout, and
// removes it — a crashed transcode is abandoned, not restarted or
// retried later, and its source WAV is left in the staging directory.
type Manager interface {
	// CreateProcess creates a new managed FFmpeg process
	CreateProcess(config *ProcessConfig) (Process, error)

	// GetProcess returns a process by ID
	GetProcess(id string) (Process, bool)

	// ListProcesses returns all managed processes
	ListProcesses() []Process

	// RemoveProcess stops and removes a process
	RemoveProcess(id string) error

	// Start starts the manager
	Start(ctx context.Context) error

	// Stop stops all processes and the manager
	Stop() error
}

// ManagerConfig contains configuration for the FFmpeg manager
type ManagerConfig struct {
	MaxProcesses   int
	CleanupTimeout time.Duration
}
