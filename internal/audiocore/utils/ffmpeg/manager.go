package ffmpeg

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robudan/acoustic-logger/internal/errors"
)

const defaultCleanupTimeout = 5 * time.Second

// manager implements the Manager interface
type manager struct {
	config    ManagerConfig
	processes map[string]*managedProcess
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// managedProcess wraps a process for bookkeeping; unlike a
// continuous-stream manager it carries no restart policy, since each
// process is a one-shot transcode run once to completion by its caller.
type managedProcess struct {
	process Process
	config  *ProcessConfig
}

// NewManager creates a new FFmpeg process manager
func NewManager(config ManagerConfig) Manager {
	if config.CleanupTimeout <= 0 {
		config.CleanupTimeout = defaultCleanupTimeout
	}

	logger.Info("creating new FFmpeg process manager",
		"max_processes", config.MaxProcesses,
		"cleanup_timeout", config.CleanupTimeout)

	return &manager{
		config:    config,
		processes: make(map[string]*managedProcess),
	}
}

// CreateProcess creates a new managed FFmpeg process
func (m *manager) CreateProcess(config *ProcessConfig) (Process, error) {
	logger.Info("creating new FFmpeg process",
		"process_id", config.ID,
		"input_type", func() string {
			if isRTSPURL(config.InputURL) {
				return "rtsp_stream"
			}
			return "local_file"
		}(),
		"output_format", config.OutputFormat,
		"current_process_count", len(m.processes))

	m.mu.Lock()
	defer m.mu.Unlock()

	// Check if process already exists
	if _, exists := m.processes[config.ID]; exists {
		logger.Error("attempted to create process that already exists",
			"process_id", config.ID)

		return nil, errors.New(fmt.Errorf("process already exists")).
			Component("audiocore").
			Category(errors.CategoryConfiguration).
			Context("process_id", config.ID).
			Build()
	}

	// Check max processes limit
	if m.config.MaxProcesses > 0 && len(m.processes) >= m.config.MaxProcesses {
		logger.Error("max processes limit reached",
			"process_id", config.ID,
			"current_count", len(m.processes),
			"limit", m.config.MaxProcesses)

		return nil, errors.New(fmt.Errorf("max processes limit reached")).
			Component("audiocore").
			Category(errors.CategorySystem).
			Context("limit", fmt.Sprintf("%d", m.config.MaxProcesses)).
			Build()
	}

	process := NewProcess(config)
	mp := &managedProcess{process: process, config: config}
	m.processes[config.ID] = mp

	logger.Info("FFmpeg process created successfully",
		"process_id", config.ID,
		"total_processes", len(m.processes))

	return process, nil
}

// GetProcess returns a process by ID
func (m *manager) GetProcess(id string) (Process, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if mp, exists := m.processes[id]; exists {
		return mp.process, true
	}
	return nil, false
}

// ListProcesses returns all managed processes
func (m *manager) ListProcesses() []Process {
	m.mu.RLock()
	defer m.mu.RUnlock()

	processes := make([]Process, 0, len(m.processes))
	for _, mp := range m.processes {
		processes = append(processes, mp.process)
	}
	return processes
}

// RemoveProcess stops and removes a process
func (m *manager) RemoveProcess(id string) error {
	logger.Info("removing FFmpeg process", "process_id", id)

	m.mu.Lock()
	defer m.mu.Unlock()

	mp, exists := m.processes[id]
	if !exists {
		logger.Error("attempted to remove non-existent process", "process_id", id)

		return errors.New(fmt.Errorf("process not found")).
			Component("audiocore").
			Category(errors.CategoryGeneric).
			Context("process_id", id).
			Build()
	}

	if err := mp.process.Stop(); err != nil {
		logger.Error("error stopping process during removal",
			"process_id", id,
			"error", err)
		// Continue with removal even if stop failed
	}

	delete(m.processes, id)

	logger.Info("FFmpeg process removed successfully",
		"process_id", id,
		"remaining_processes", len(m.processes))

	return nil
}

// Start starts the manager
func (m *manager) Start(ctx context.Context) error {
	logger.Info("starting FFmpeg process manager",
		"existing_processes", len(m.processes))

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		logger.Error("attempted to start already running manager")

		return errors.New(fmt.Errorf("manager already started")).
			Component("audiocore").
			Category(errors.CategorySystem).
			Build()
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	logger.Info("FFmpeg process manager started successfully")

	return nil
}

// Stop stops all processes and the manager
func (m *manager) Stop() error {
	stopTime := time.Now()
	processCount := len(m.processes)

	logger.Info("stopping FFmpeg process manager",
		"active_processes", processCount)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}

	var lastErr error
	stoppedCount := 0
	failedCount := 0

	for id, mp := range m.processes {
		if err := mp.process.Stop(); err != nil {
			lastErr = err
			failedCount++
			logger.Error("failed to stop process during manager shutdown",
				"process_id", id,
				"error", err)
		} else {
			stoppedCount++
			logger.Debug("process stopped during manager shutdown", "process_id", id)
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("FFmpeg process manager stopped successfully",
			"stopped_processes", stoppedCount,
			"failed_processes", failedCount,
			"shutdown_duration_ms", time.Since(stopTime).Milliseconds())

	case <-time.After(m.config.CleanupTimeout):
		logger.Error("timeout waiting for cleanup during manager shutdown",
			"timeout", m.config.CleanupTimeout,
			"shutdown_duration_ms", time.Since(stopTime).Milliseconds())

		return errors.New(fmt.Errorf("timeout waiting for cleanup")).
			Component("audiocore").
			Category(errors.CategorySystem).
			Build()
	}

	m.processes = make(map[string]*managedProcess)
	m.ctx = nil
	m.cancel = nil

	if lastErr != nil {
		logger.Error("manager shutdown completed with errors",
			"stopped_processes", stoppedCount,
			"failed_processes", failedCount,
			"last_error", lastErr)

		return errors.New(lastErr).
			Component("audiocore").
			Category(errors.CategorySystem).
			Context("operation", "stop-manager").
			Build()
	}

	return nil
}
