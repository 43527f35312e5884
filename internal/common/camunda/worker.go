package camunda

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"invoice-workers/internal/common/logger"
)

// JobHandler processes jobs of one task type.
type JobHandler interface {
	GetTaskType() string
	Handle(client worker.JobClient, job entities.Job)
}

// WorkerOptions controls how a job worker polls the broker.
type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
}

// Manager opens one job worker per registered handler and closes them
// together on shutdown.
type Manager struct {
	client zbc.Client
	logger logger.Logger

	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewManager(client zbc.Client, log logger.Logger) *Manager {
	return &Manager{
		client:  client,
		logger:  log,
		workers: make(map[string]worker.JobWorker),
	}
}

// Register opens a job worker for handler.
func (m *Manager) Register(handler JobHandler, opts WorkerOptions) error {
	taskType := handler.GetTaskType()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workers[taskType]; exists {
		return fmt.Errorf("worker for task type %s already registered", taskType)
	}

	step := m.client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		Name(fmt.Sprintf("%s-worker", taskType))
	if opts.MaxJobsActive > 0 {
		step = step.MaxJobsActive(opts.MaxJobsActive)
	}
	if opts.Timeout > 0 {
		step = step.Timeout(opts.Timeout)
	}
	m.workers[taskType] = step.Open()

	m.logger.Info("Worker registered with Camunda", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})
	return nil
}

// TaskTypes lists the registered task types.
func (m *Manager) TaskTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.workers))
	for taskType := range m.workers {
		out = append(out, taskType)
	}
	return out
}

// Close stops every job worker and waits for in-flight jobs until ctx ends.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	workers := m.workers
	m.workers = make(map[string]worker.JobWorker)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for taskType, w := range workers {
		wg.Add(1)
		go func(taskType string, w worker.JobWorker) {
			defer wg.Done()
			w.Close()
			w.AwaitClose()
			m.logger.Info("Worker stopped", map[string]interface{}{"taskType": taskType})
		}(taskType, w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timed out waiting for workers to stop", map[string]interface{}{
			"error": ctx.Err().Error(),
		})
	}
}
