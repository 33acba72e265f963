package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rmchallenge/companion/internal/influx"
	"github.com/rmchallenge/companion/internal/logging"
	"github.com/rmchallenge/companion/internal/session"
)

// StatusSource yields point-in-time session progress.
type StatusSource interface {
	Status() session.Status
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source     StatusSource
	LogManager *logging.SlogManager
	Influx     *influx.Manager

	// EventQueueLen reports the autosave event backlog, nil disables it.
	EventQueueLen func() int

	// InvalidAttempts reports the acquirer's invalid-map counter.
	InvalidAttempts func() int

	// StatusDir is where status.txt is written.
	StatusDir string
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	stopped   bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot returns the status lines written to status.txt together with
// the sampled session status.
func (s *Service) Snapshot() (output []string, status session.Status) {
	status = s.deps.Source.Status()

	statusStr, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		statusStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	output = append(output, string(statusStr))

	if s.deps.EventQueueLen != nil {
		output = append(output, fmt.Sprintf(`{"eventQueueLen": %d}`, s.deps.EventQueueLen()))
	}

	return output, status
}

// Start starts the status monitor goroutine
func (s *Service) Start(sessionID string) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopped = false
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor")

		statusFile, err := os.Create(filepath.Join(s.deps.StatusDir, "status.txt"))
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		for {
			select {
			case <-s.stopChan:
				return
			default:
				time.Sleep(1000 * time.Millisecond)

				statusStr, status := s.Snapshot()
				if !status.Running {
					continue
				}

				if statusFile != nil {
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					for _, line := range statusStr {
						statusFile.WriteString(line + "\n")
					}
				}

				if s.deps.Influx != nil {
					queueLen := 0
					if s.deps.EventQueueLen != nil {
						queueLen = s.deps.EventQueueLen()
					}
					invalid := 0
					if s.deps.InvalidAttempts != nil {
						invalid = s.deps.InvalidAttempts()
					}
					point := influx.PerformancePoint(sessionID, queueLen, invalid, status.MapsPlayed)
					err = s.deps.Influx.WritePoint(context.Background(), influx.BucketPerformance, point)
					if err != nil {
						logger.Error("Error writing perf point to InfluxDB", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor. Safe to call more than once; the
// goroutine clears isRunning only on exit, so Stop tracks the close
// itself.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning && !s.stopped {
		s.stopped = true
		close(s.stopChan)
	}
}
