// Package export writes simulation output buffers to image and data files.
// Writes run on a bounded worker pool so the simulation loop is not stalled
// by disk IO.
package export

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"camsim/log"
	"camsim/sim"
)

var logger = log.New("export")

// Exporter schedules asynchronous buffer writes. The zero value is not
// usable; create one with NewExporter.
type Exporter struct {
	pool   worker.DynamicWorkerPool
	wg     sync.WaitGroup
	nextID int

	mu       sync.Mutex
	firstErr error
}

// NewExporter returns an exporter running at most workers concurrent
// writes.
func NewExporter(workers int) *Exporter {
	if workers < 1 {
		workers = 1
	}
	return &Exporter{
		pool: worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
	}
}

// Export schedules writing a buffer to path. The buffer must not be
// modified until Wait returns. Errors are logged and reported by Wait.
func (e *Exporter) Export(path string, buf sim.Buffer) {
	e.wg.Add(1)
	e.nextID++
	id := e.nextID
	e.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			defer e.wg.Done()
			if err := WriteBuffer(path, buf); err != nil {
				logger.Errorf("export: %v", err)
				e.mu.Lock()
				if e.firstErr == nil {
					e.firstErr = err
				}
				e.mu.Unlock()
				return nil, err
			}
			return nil, nil
		},
	})
}

// Wait blocks until all scheduled exports have finished and returns the
// first error encountered, if any.
func (e *Exporter) Wait() error {
	e.wg.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.firstErr
	e.firstErr = nil
	return err
}
