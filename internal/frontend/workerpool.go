package frontend

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// taskChanSize bounds how many pending notifications the pool will
// buffer before Submit blocks the calling (matching-engine) goroutine.
const taskChanSize = 256

// WorkerTask is the function a WorkerPool runs on each drained task (a
// single published Notification, boxed as any so the pool stays reusable
// outside this package).
type WorkerTask = func(t *tomb.Tomb, task any) error

// WorkerPool runs a fixed number of goroutines pulling tasks off a
// shared channel: a tomb-supervised fixed-size pool carrying
// trade/execution notifications.
type WorkerPool struct {
	n     int
	tasks chan any
}

// NewWorkerPool returns a pool sized for n concurrent workers.
func NewWorkerPool(n int) WorkerPool {
	return WorkerPool{n: n, tasks: make(chan any, taskChanSize)}
}

// Submit enqueues task for a worker to pick up; it blocks if the queue
// is full.
func (p *WorkerPool) Submit(task any) { p.tasks <- task }

// Setup launches the pool's fixed worker count under t. A worker whose
// task returns an error exits and is not restarted; the error kills t.
func (p *WorkerPool) Setup(t *tomb.Tomb, work WorkerTask) {
	log.Info().Int("workers", p.n).Msg("frontend worker pool starting")
	for i := 0; i < p.n; i++ {
		t.Go(func() error { return p.worker(t, work) })
	}
}

// worker drains tasks until the tomb dies, running work on each; once
// the tomb is dying it finishes whatever is still queued, then exits.
func (p *WorkerPool) worker(t *tomb.Tomb, work WorkerTask) error {
	for {
		select {
		case <-t.Dying():
			for {
				select {
				case task := <-p.tasks:
					if err := work(t, task); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		case task := <-p.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Msg("frontend worker exiting")
				return err
			}
		}
	}
}
