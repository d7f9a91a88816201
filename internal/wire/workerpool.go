package wire

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// WorkerFunction processes one queued task, adapted from fenrir's
// internal worker pool (originally internal/worker.go) under the tomb
// it was spawned from.
type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool fans a bounded number of goroutines out over a task
// channel, each supervised by the caller's tomb.Tomb.
type WorkerPool struct {
	n     int
	tasks chan any
	work  WorkerFunction
}

// NewWorkerPool creates a pool of size workers sharing one task queue.
func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{tasks: make(chan any, taskChanSize), n: size}
}

// AddTask enqueues a task for the next free worker.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup spawns exactly n workers under t. A worker returning an error
// kills the tomb, which in turn stops every other worker via t.Dying();
// there is nothing to respawn.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	pool.work = work
	log.Info().Int("workers", pool.n).Msg("starting worker pool")
	for i := 0; i < pool.n; i++ {
		t.Go(func() error {
			return pool.loop(t)
		})
	}
}

func (pool *WorkerPool) loop(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := pool.work(t, task); err != nil {
				log.Error().Err(err).Msg("worker task failed")
				return err
			}
		}
	}
}
