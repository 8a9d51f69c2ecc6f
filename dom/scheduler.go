// Package dom provides an in-process live document model: a mutable
// node tree with event targets, mutation observers, stylesheets,
// geometry, sub-documents, and a deterministic cooperative scheduler
// standing in for the browser main loop. The recording engine observes
// documents through this package; hosts materialize them from real
// pages (see the browser package) or build them directly in tests.
package dom

import "sort"

// Scheduler is the single cooperative main loop shared by a document
// tree (a top document and all its frames). All recorder pacing —
// animation frames, debounce timers, mutation delivery microtasks,
// postMessage macrotasks — runs here, which keeps ordering exactly
// reasoned and every test clock-driven.
type Scheduler struct {
	now           int64 // epoch milliseconds
	frameInterval int64

	micro  []func()
	tasks  []func()
	timers []*timerEntry
	rafs   []rafEntry

	nextTimerID int
	nextRafID   int
}

type timerEntry struct {
	id  int
	due int64
	fn  func()
}

type rafEntry struct {
	id int
	fn func(now int64)
}

// NewScheduler creates a scheduler whose clock starts at the given
// epoch-milliseconds instant. Frames advance the clock by 16ms.
func NewScheduler(startMillis int64) *Scheduler {
	return &Scheduler{now: startMillis, frameInterval: 16}
}

// NowMillis returns the current scheduler clock.
func (s *Scheduler) NowMillis() int64 { return s.now }

// QueueMicrotask enqueues fn to run before the next macrotask.
func (s *Scheduler) QueueMicrotask(fn func()) { s.micro = append(s.micro, fn) }

// PostTask enqueues fn as a macrotask.
func (s *Scheduler) PostTask(fn func()) { s.tasks = append(s.tasks, fn) }

// SetTimeout schedules fn once after delay milliseconds.
func (s *Scheduler) SetTimeout(fn func(), delay int64) int {
	if delay < 0 {
		delay = 0
	}
	s.nextTimerID++
	s.timers = append(s.timers, &timerEntry{id: s.nextTimerID, due: s.now + delay, fn: fn})
	return s.nextTimerID
}

// ClearTimeout cancels a pending timer. Unknown ids are ignored.
func (s *Scheduler) ClearTimeout(id int) {
	for i, t := range s.timers {
		if t.id == id {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return
		}
	}
}

// RequestAnimationFrame schedules fn for the next frame.
func (s *Scheduler) RequestAnimationFrame(fn func(now int64)) int {
	s.nextRafID++
	s.rafs = append(s.rafs, rafEntry{id: s.nextRafID, fn: fn})
	return s.nextRafID
}

// CancelAnimationFrame cancels a pending frame callback.
func (s *Scheduler) CancelAnimationFrame(id int) {
	for i, r := range s.rafs {
		if r.id == id {
			s.rafs = append(s.rafs[:i], s.rafs[i+1:]...)
			return
		}
	}
}

// PendingFrames reports how many frame callbacks are queued.
func (s *Scheduler) PendingFrames() int { return len(s.rafs) }

// Flush drains microtasks and macrotasks until both queues are empty.
// Microtasks always run before the next macrotask, as on the real loop.
func (s *Scheduler) Flush() {
	for len(s.micro) > 0 || len(s.tasks) > 0 {
		for len(s.micro) > 0 {
			fn := s.micro[0]
			s.micro = s.micro[1:]
			fn()
		}
		if len(s.tasks) > 0 {
			fn := s.tasks[0]
			s.tasks = s.tasks[1:]
			fn()
		}
	}
}

// Frame advances the clock by one frame interval, fires due timers,
// runs the frame callbacks registered before this call, then flushes
// task queues. Callbacks re-registered during the frame run next frame.
func (s *Scheduler) Frame() {
	s.step(s.frameInterval)
}

// Advance moves the clock forward by ms, running frames, timers and
// task queues as their deadlines pass.
func (s *Scheduler) Advance(ms int64) {
	remaining := ms
	for remaining > 0 {
		step := s.frameInterval
		if remaining < step {
			step = remaining
		}
		s.step(step)
		remaining -= step
	}
}

func (s *Scheduler) step(d int64) {
	s.now += d
	s.fireDueTimers()

	rafs := s.rafs
	s.rafs = nil
	for _, r := range rafs {
		r.fn(s.now)
	}

	s.Flush()
}

func (s *Scheduler) fireDueTimers() {
	var due []*timerEntry
	rest := s.timers[:0]
	for _, t := range s.timers {
		if t.due <= s.now {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	s.timers = rest

	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].id < due[j].id
	})
	for _, t := range due {
		t.fn()
	}
}
