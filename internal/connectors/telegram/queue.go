package telegram

import "sync"

// chatQueues runs jobs for one chat strictly in the order they were
// enqueued while different chats run concurrently. A chat's queue is
// drained by a single goroutine that exits once the queue is empty.
// At most limit chats run a job at the same time.
type chatQueues struct {
	mu      sync.Mutex
	pending map[string][]func()
	slots   chan struct{}
	wg      sync.WaitGroup
}

func newChatQueues(limit int) *chatQueues {
	if limit <= 0 {
		limit = 1
	}
	return &chatQueues{
		pending: make(map[string][]func()),
		slots:   make(chan struct{}, limit),
	}
}

// enqueue appends job to key's queue. It never blocks on running jobs.
func (q *chatQueues) enqueue(key string, job func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs, draining := q.pending[key]
	q.pending[key] = append(jobs, job)
	if draining {
		return
	}
	q.wg.Add(1)
	go q.drain(key)
}

func (q *chatQueues) drain(key string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		jobs := q.pending[key]
		if len(jobs) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		jobs[0] = nil
		q.pending[key] = jobs[1:]
		q.mu.Unlock()

		q.slots <- struct{}{}
		job()
		<-q.slots
	}
}

// wait blocks until every queued job has run.
func (q *chatQueues) wait() {
	q.wg.Wait()
}

func (q *chatQueues) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
