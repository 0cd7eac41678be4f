package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingSender keeps every frame it is asked to send.
type recordingSender struct {
	mu     sync.Mutex
	frames []string
	err    error
}

func (s *recordingSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, string(data))
	return s.err
}

func (s *recordingSender) Frames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func stopPoller(t *testing.T, p *Poller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestPoller_PollAll(t *testing.T) {
	sender := &recordingSender{}
	cfg := Config{
		Interval: time.Hour, // Long interval, we'll trigger manually.
		Requests: []string{"GET:nodes", "GET:relationships"},
	}

	p := New(cfg, sender, nil)
	p.ctx = context.Background()

	p.pollAll()

	frames := sender.Frames()
	if len(frames) != 2 || frames[0] != "GET:nodes" || frames[1] != "GET:relationships" {
		t.Errorf("frames = %v, want [GET:nodes GET:relationships]", frames)
	}
	if got := p.Cycles(); got != 1 {
		t.Errorf("Cycles = %d, want 1", got)
	}
}

func TestPoller_StartStop(t *testing.T) {
	sender := &recordingSender{}
	cfg := Config{
		Interval: 20 * time.Millisecond,
		Requests: []string{"GET:nodes"},
	}

	p := New(cfg, sender, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for p.Cycles() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	stopPoller(t, p)

	if got := p.Cycles(); got < 2 {
		t.Fatalf("Cycles = %d, want >= 2", got)
	}

	sent := len(sender.Frames())
	time.Sleep(3 * cfg.Interval)
	if got := len(sender.Frames()); got != sent {
		t.Errorf("sent %d frames after Stop", got-sent)
	}
}

func TestPoller_NoImmediatePoll(t *testing.T) {
	sender := &recordingSender{}
	p := New(Config{Interval: time.Hour, Requests: []string{"GET:nodes"}}, sender, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	stopPoller(t, p)

	if got := len(sender.Frames()); got != 0 {
		t.Errorf("frames = %d, want 0 before the first interval", got)
	}
}

func TestPoller_InvalidInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		p := New(Config{Interval: interval, Requests: []string{"GET:nodes"}}, &recordingSender{}, nil)
		if err := p.Start(context.Background()); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Start(%v) = %v, want ErrInvalidInterval", interval, err)
		}
	}
}

func TestPoller_ToleratesSendFailures(t *testing.T) {
	var calls atomic.Int64
	sender := SenderFunc(func([]byte) error {
		calls.Add(1)
		return errors.New("not connected")
	})

	p := New(Config{Interval: 10 * time.Millisecond, Requests: []string{"GET:nodes"}}, sender, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	stopPoller(t, p)

	if got := p.Failures(); got < 3 {
		t.Errorf("Failures = %d, want >= 3", got)
	}
}

func TestPoller_StopNeverStarted(t *testing.T) {
	p := New(DefaultConfig(), &recordingSender{}, nil)
	stopPoller(t, p)
}

func TestConfig_Enabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"default", DefaultConfig(), true},
		{"zero interval", Config{Requests: []string{"GET:nodes"}}, false},
		{"no requests", Config{Interval: time.Minute}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
