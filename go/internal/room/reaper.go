package room

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Reaper runs cancellable one-shot tasks keyed by room id. Scheduling a task
// for an id replaces any pending task for that id.
type Reaper struct {
	clock clockwork.Clock

	mu      sync.Mutex
	tasks   map[string]*reapTask
	stopped bool
}

type reapTask struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

// NewReaper creates a new Reaper
func NewReaper(clock clockwork.Clock) *Reaper {
	return &Reaper{
		clock: clock,
		tasks: make(map[string]*reapTask),
	}
}

// Schedule runs fn after the given delay unless the task is cancelled or
// replaced first. fn runs on its own goroutine without any reaper lock held.
func (r *Reaper) Schedule(id string, after time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}

	if existing, ok := r.tasks[id]; ok {
		existing.stop()
		log.Debug().Str("room_id", id).Msg("replaced pending reap")
	}

	task := &reapTask{
		timer:  r.clock.NewTimer(after),
		cancel: make(chan struct{}),
	}
	r.tasks[id] = task

	go func(id string, task *reapTask) {
		select {
		case <-task.timer.Chan():
			r.mu.Lock()
			current, ok := r.tasks[id]
			if !ok || current != task {
				r.mu.Unlock()
				return
			}
			delete(r.tasks, id)
			r.mu.Unlock()

			fn()
		case <-task.cancel:
			stopAndDrainTimer(task.timer)
		}
	}(id, task)

	log.Debug().Str("room_id", id).Dur("after", after).Msg("scheduled reap")
}

// Cancel drops the pending task for id. It reports whether one was pending.
func (r *Reaper) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return false
	}
	delete(r.tasks, id)
	task.stop()

	log.Debug().Str("room_id", id).Msg("cancelled pending reap")
	return true
}

// Pending reports whether a task is scheduled for id
func (r *Reaper) Pending(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[id]
	return ok
}

// Len returns the number of pending tasks
func (r *Reaper) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Stop cancels every pending task. Later calls to Schedule are ignored.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, task := range r.tasks {
		task.stop()
		delete(r.tasks, id)
	}
	r.stopped = true
}

func (t *reapTask) stop() {
	close(t.cancel)
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
