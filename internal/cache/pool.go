package cache

import (
	"context"
	"sync"

	"github.com/acampos-dev/dealrush-backend/pkg/logger"
)

// RebuildPool runs cache rebuild jobs on a small bounded set of workers so
// that reloads never compete with request-handling goroutines. It is
// constructed and owned by the process startup sequence, not a package-level
// singleton.
type RebuildPool struct {
	jobs    chan func()
	done    chan struct{}
	workers int
	logg    *logger.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRebuildPool sizes the pool; Start must be called before Submit.
func NewRebuildPool(workers, queueSize int, logg *logger.Logger) *RebuildPool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &RebuildPool{
		jobs:    make(chan func(), queueSize),
		done:    make(chan struct{}),
		workers: workers,
		logg:    logg,
	}
}

// Start launches the worker goroutines.
func (p *RebuildPool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case job := <-p.jobs:
					job()
				case <-p.done:
					for {
						select {
						case job := <-p.jobs:
							job()
						default:
							return
						}
					}
				}
			}
		}()
	}
}

// Submit enqueues a rebuild without blocking. It reports false when the queue
// is full or the pool has been stopped; the caller keeps serving the stale
// value either way.
func (p *RebuildPool) Submit(job func()) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.jobs <- job:
		return true
	case <-p.done:
		return false
	default:
		if p.logg != nil {
			p.logg.Warn(context.Background(), "cache rebuild queue full, dropping job")
		}
		return false
	}
}

// Stop waits for in-flight jobs to finish. Workers drain the queue before
// exiting; a Submit racing with Stop may be dropped.
func (p *RebuildPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
