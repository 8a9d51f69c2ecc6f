package dom

import "testing"

func TestSchedulerTimerOrder(t *testing.T) {
	s := NewScheduler(1000)

	var fired []string
	s.SetTimeout(func() { fired = append(fired, "b") }, 20)
	s.SetTimeout(func() { fired = append(fired, "a") }, 10)
	s.SetTimeout(func() { fired = append(fired, "c") }, 20)

	s.Advance(32)

	want := []string{"a", "b", "c"}
	if len(fired) != len(want) {
		t.Fatalf("fired %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("fired[%d] = %q, want %q", i, fired[i], want[i])
		}
	}
}

func TestSchedulerClearTimeout(t *testing.T) {
	s := NewScheduler(0)
	fired := false
	id := s.SetTimeout(func() { fired = true }, 10)
	s.ClearTimeout(id)
	s.Advance(100)
	if fired {
		t.Error("cleared timer fired")
	}
}

func TestSchedulerFrameCallbacksRunOncePerRegistration(t *testing.T) {
	s := NewScheduler(0)
	count := 0
	s.RequestAnimationFrame(func(int64) { count++ })
	s.Frame()
	s.Frame()
	if count != 1 {
		t.Errorf("raf ran %d times, want 1", count)
	}
}

func TestSchedulerFrameReregistration(t *testing.T) {
	s := NewScheduler(0)
	var times []int64
	var loop func(now int64)
	loop = func(now int64) {
		times = append(times, now)
		if len(times) < 3 {
			s.RequestAnimationFrame(loop)
		}
	}
	s.RequestAnimationFrame(loop)

	s.Frame()
	s.Frame()
	s.Frame()

	if len(times) != 3 {
		t.Fatalf("raf ran %d times, want 3", len(times))
	}
	if times[0] != 16 || times[1] != 32 || times[2] != 48 {
		t.Errorf("frame times = %v, want [16 32 48]", times)
	}
}

func TestSchedulerMicrotasksBeforeMacrotasks(t *testing.T) {
	s := NewScheduler(0)
	var order []string
	s.PostTask(func() { order = append(order, "task") })
	s.QueueMicrotask(func() { order = append(order, "micro") })
	s.Flush()
	if len(order) != 2 || order[0] != "micro" || order[1] != "task" {
		t.Errorf("order = %v, want [micro task]", order)
	}
}

func TestSchedulerCancelAnimationFrame(t *testing.T) {
	s := NewScheduler(0)
	fired := false
	id := s.RequestAnimationFrame(func(int64) { fired = true })
	s.CancelAnimationFrame(id)
	s.Frame()
	if fired {
		t.Error("cancelled raf fired")
	}
	if s.PendingFrames() != 0 {
		t.Errorf("pending frames = %d, want 0", s.PendingFrames())
	}
}
