package utils

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	TASK_CHAN_SIZE = 100
)

type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool fans queued tasks out over a fixed set of workers whose
// lifecycle is owned by the caller's tomb.
type WorkerPool struct {
	n     int            // number of workers
	tasks chan any       // task connection pool
	work  WorkerFunction // do work method
}

func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{
		tasks: make(chan any, TASK_CHAN_SIZE),
		n:     size,
	}
}

// Setup spawns the full pool of workers under the tomb.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	log.Info().Int("activeWorkers", pool.n).Msg("adding workers")
	pool.work = work
	for i := 0; i < pool.n; i++ {
		t.Go(func() error {
			return pool.worker(t, work)
		})
	}
}

// AddTask queues a task for the next free worker.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Workers wait on tasks in the task connection pool and action them.
func (pool *WorkerPool) worker(t *tomb.Tomb, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Msg("worker exiting")
				return err
			}
		}
	}
}
