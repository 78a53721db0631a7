// Package writeback runs cache writes behind the caller's back. A write is
// attempted once; a failure is logged and counted, never retried and never
// returned to whoever enqueued it.
package writeback

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MimeLyc/comicshelf/internal/comic"
	"github.com/MimeLyc/comicshelf/pkg/log"
)

const (
	defaultMaxJobs     = 256
	defaultTaskTimeout = 30 * time.Second
)

type Queue struct {
	workerCount int
	maxJobs     int
	taskTimeout time.Duration

	mu        sync.Mutex
	jobs      map[string]*Job
	tasks     map[string]Task
	dedupe    map[string]string
	idCounter uint64
	started   bool
	stopped   bool
	inflight  int
	idle      []chan struct{}

	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	failures atomic.Uint64
}

func NewQueue(workerCount int) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Queue{
		workerCount: workerCount,
		maxJobs:     defaultMaxJobs,
		taskTimeout: defaultTaskTimeout,
		jobs:        make(map[string]*Job),
		tasks:       make(map[string]Task),
		dedupe:      make(map[string]string),
		pendingIDs:  make(chan string, 64),
		stopCh:      make(chan struct{}),
	}
}

// Enqueue schedules task under key. While a job for the same key is still
// pending or running, the new task is dropped and the existing job returned.
func (q *Queue) Enqueue(key string, task Task) (*Job, bool) {
	now := time.Now()

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		log.Debug("Write-back queue stopped, dropping %s", key)
		return nil, false
	}
	if id, ok := q.dedupe[key]; ok {
		if existing, exists := q.jobs[id]; exists {
			snapshot := cloneJob(existing)
			q.mu.Unlock()
			return snapshot, false
		}
		delete(q.dedupe, key)
	}

	q.idCounter++
	id := fmt.Sprintf("wb-%d", q.idCounter)
	job := &Job{
		ID:        id,
		Key:       key,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.jobs[id] = job
	q.tasks[id] = task
	q.dedupe[key] = id
	q.inflight++
	started := q.started
	snapshot := cloneJob(job)
	q.mu.Unlock()

	if started {
		q.enqueuePendingID(id)
	}
	return snapshot, true
}

func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	q.mu.Unlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

func (q *Queue) List() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	ret := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret
}

// Failures counts tasks that returned an error.
func (q *Queue) Failures() uint64 {
	return q.failures.Load()
}

func (q *Queue) Start() {
	q.mu.Lock()
	if q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.started = true

	pending := make([]*Job, 0)
	for _, job := range q.jobs {
		if job.Status == StatusPending {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	q.mu.Unlock()

	for _, job := range pending {
		q.enqueuePendingID(job.ID)
	}

	for range q.workerCount {
		q.wg.Add(1)
		go q.worker()
	}
}

// Flush blocks until every enqueued task has finished or ctx is done.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if q.inflight == 0 {
		q.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	q.idle = append(q.idle, ch)
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop halts the workers. Tasks not yet started are abandoned.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		q.mu.Unlock()
		close(q.stopCh)
		q.wg.Wait()
	})
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.pendingIDs:
			job, task, ok := q.markRunning(id)
			if !ok {
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), q.taskTimeout)
			err := runTask(ctx, task)
			cancel()
			if err != nil {
				q.failures.Add(1)
				log.Warn("%v", comic.WrapError(err, comic.ErrCacheWriteFailed, "cache write failed").
					WithContext("key", job.Key))
				q.finish(id, err)
				continue
			}
			q.finish(id, nil)
		}
	}
}

func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}

func (q *Queue) enqueuePendingID(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		go func() {
			select {
			case q.pendingIDs <- id:
			case <-q.stopCh:
			}
		}()
	}
}

func (q *Queue) markRunning(id string) (*Job, Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok || job.Status != StatusPending {
		return nil, nil, false
	}
	task := q.tasks[id]
	delete(q.tasks, id)
	job.Status = StatusRunning
	job.UpdatedAt = time.Now()
	return cloneJob(job), task, true
}

func (q *Queue) finish(id string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return
	}
	job.Status = StatusSuccess
	job.Error = ""
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
	}
	job.UpdatedAt = time.Now()
	if current, ok := q.dedupe[job.Key]; ok && current == id {
		delete(q.dedupe, job.Key)
	}
	q.pruneTerminalJobsLocked()

	q.inflight--
	if q.inflight == 0 {
		for _, ch := range q.idle {
			close(ch)
		}
		q.idle = nil
	}
}

func (q *Queue) pruneTerminalJobsLocked() {
	if q.maxJobs <= 0 || len(q.jobs) <= q.maxJobs {
		return
	}

	terminal := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		if job.terminal() {
			terminal = append(terminal, job)
		}
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].UpdatedAt.Before(terminal[j].UpdatedAt)
	})

	toRemove := min(len(q.jobs)-q.maxJobs, len(terminal))
	for _, job := range terminal[:toRemove] {
		delete(q.jobs, job.ID)
	}
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}
