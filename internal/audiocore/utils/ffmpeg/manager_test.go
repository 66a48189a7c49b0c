package ffmpeg

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	t.Parallel()

	config := ManagerConfig{
		MaxProcesses:   10,
		CleanupTimeout: 10 * time.Second,
	}

	manager := NewManager(config)
	assert.NotNil(t, manager, "NewManager should not return nil")

	processes := manager.ListProcesses()
	assert.Empty(t, processes, "Expected 0 processes initially")
}

func TestManagerCreateProcess(t *testing.T) {
	t.Parallel()

	config := ManagerConfig{
		MaxProcesses:   2,
		CleanupTimeout: 10 * time.Second,
	}

	manager := NewManager(config)

	processConfig := &ProcessConfig{
		ID:           "test-process-1",
		InputURL:     "test.wav",
		OutputFormat: "s16le",
		SampleRate:   48000,
		Channels:     2,
		BitDepth:     16,
		BufferSize:   1024,
		FFmpegPath:   "/nonexistent/ffmpeg",
	}

	process, err := manager.CreateProcess(processConfig)
	require.NoError(t, err, "Failed to create process")
	assert.Equal(t, processConfig.ID, process.ID(), "Process ID should match config")

	retrievedProcess, exists := manager.GetProcess(processConfig.ID)
	assert.True(t, exists, "Process should exist in manager")
	assert.Equal(t, processConfig.ID, retrievedProcess.ID(), "Retrieved process should have correct ID")
}

func TestManagerDuplicateProcess(t *testing.T) {
	t.Parallel()

	config := ManagerConfig{MaxProcesses: 10}
	manager := NewManager(config)

	processConfig := &ProcessConfig{
		ID:           "duplicate-test",
		InputURL:     "test.wav",
		OutputFormat: "s16le",
		SampleRate:   48000,
		Channels:     2,
		BitDepth:     16,
		BufferSize:   1024,
		FFmpegPath:   "/nonexistent/ffmpeg",
	}

	_, err := manager.CreateProcess(processConfig)
	require.NoError(t, err, "Failed to create first process")

	_, err = manager.CreateProcess(processConfig)
	assert.Error(t, err, "Expected error when creating duplicate process")
}

func TestManagerMaxProcessesLimit(t *testing.T) {
	t.Parallel()

	config := ManagerConfig{MaxProcesses: 1}
	manager := NewManager(config)

	processConfig1 := &ProcessConfig{
		ID:           "process-1",
		InputURL:     "test1.wav",
		OutputFormat: "s16le",
		SampleRate:   48000,
		Channels:     2,
		BitDepth:     16,
		BufferSize:   1024,
		FFmpegPath:   "/nonexistent/ffmpeg",
	}

	_, err := manager.CreateProcess(processConfig1)
	require.NoError(t, err, "Failed to create first process")

	processConfig2 := &ProcessConfig{
		ID:           "process-2",
		InputURL:     "test2.wav",
		OutputFormat: "s16le",
		SampleRate:   48000,
		Channels:     2,
		BitDepth:     16,
		BufferSize:   1024,
		FFmpegPath:   "/nonexistent/ffmpeg",
	}

	_, err = manager.CreateProcess(processConfig2)
	assert.Error(t, err, "Expected error when exceeding max processes limit")
}

func TestManagerRemoveProcess(t *testing.T) {
	t.Parallel()

	config := ManagerConfig{MaxProcesses: 10}
	manager := NewManager(config)

	processConfig := &ProcessConfig{
		ID:           "remove-test",
		InputURL:     "test.wav",
		OutputFormat: "s16le",
		SampleRate:   48000,
		Channels:     2,
		BitDepth:     16,
		BufferSize:   1024,
		FFmpegPath:   "/nonexistent/ffmpeg",
	}

	_, err := manager.CreateProcess(processConfig)
	require.NoError(t, err, "Failed to create process")

	err = manager.RemoveProcess(processConfig.ID)
	require.NoError(t, err, "Failed to remove process")

	_, exists := manager.GetProcess(processConfig.ID)
	assert.False(t, exists, "Process should not exist after removal")
}

func TestManagerRemoveNonexistentProcess(t *testing.T) {
	t.Parallel()

	config := ManagerConfig{MaxProcesses: 10}
	manager := NewManager(config)

	err := manager.RemoveProcess("nonexistent")
	assert.Error(t, err, "Expected error when removing nonexistent process")
}

func TestManagerListProcesses(t *testing.T) {
	t.Parallel()

	config := ManagerConfig{MaxProcesses: 10}
	manager := NewManager(config)

	for i := range 3 {
		processConfig := &ProcessConfig{
			ID:           fmt.Sprintf("list-test-%d", i),
			InputURL:     fmt.Sprintf("test%d.wav", i),
			OutputFormat: "s16le",
			SampleRate:   48000,
			Channels:     2,
			BitDepth:     16,
			BufferSize:   1024,
			FFmpegPath:   "/nonexistent/ffmpeg",
		}

		_, err := manager.CreateProcess(processConfig)
		require.NoError(t, err, "Failed to create process %d", i)
	}

	processes := manager.ListProcesses()
	assert.Len(t, processes, 3, "Expected 3 processes")
}

func TestManagerStartStop(t *testing.T) {
	t.Parallel()

	config := ManagerConfig{
		MaxProcesses:   10,
		CleanupTimeout: 5 * time.Second,
	}

	manager := NewManager(config)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := manager.Start(ctx)
	require.NoError(t, err, "Failed to start manager")

	err = manager.Start(ctx)
	require.Error(t, err, "Expected error when starting already started manager")

	err = manager.Stop()
	require.NoError(t, err, "Failed to stop manager")
}

func TestManagerStopWithUnstartedProcess(t *testing.T) {
	t.Parallel()

	config := ManagerConfig{MaxProcesses: 5}
	manager := NewManager(config)

	processConfig := &ProcessConfig{
		ID:           "stop-test",
		InputURL:     "test.wav",
		OutputFormat: "s16le",
		SampleRate:   48000,
		Channels:     2,
		BufferSize:   1024,
		FFmpegPath:   "/nonexistent/ffmpeg",
	}

	_, err := manager.CreateProcess(processConfig)
	require.NoError(t, err, "Failed to create process")

	// Stopping an FFmpeg process that was never started must be a no-op,
	// matching process.Stop's own "already stopped" guard.
	err = manager.Stop()
	require.NoError(t, err, "Stop should tolerate a never-started process")
}
