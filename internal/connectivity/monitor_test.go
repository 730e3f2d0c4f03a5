package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type flakyPinger struct {
	fail atomic.Bool
}

func (p *flakyPinger) Ping(_ context.Context) error {
	if p.fail.Load() {
		return errors.New("unreachable")
	}
	return nil
}

func TestMonitor_StartsOffline(t *testing.T) {
	m := NewMonitor(&flakyPinger{}, time.Minute, zap.NewNop())
	if m.Online() {
		t.Fatal("monitor must start offline")
	}
}

func TestSet_EmitsEdgeOnTransitionOnly(t *testing.T) {
	m := NewMonitor(&flakyPinger{}, time.Minute, zap.NewNop())

	m.Set(true)
	select {
	case online := <-m.Edges():
		if !online {
			t.Fatal("edge value: got offline want online")
		}
	default:
		t.Fatal("transition produced no edge")
	}

	// Same state again: no edge.
	m.Set(true)
	select {
	case <-m.Edges():
		t.Fatal("repeated state must not emit an edge")
	default:
	}

	m.Set(false)
	select {
	case online := <-m.Edges():
		if online {
			t.Fatal("edge value: got online want offline")
		}
	default:
		t.Fatal("offline transition produced no edge")
	}
	if m.Online() {
		t.Fatal("state not updated")
	}
}

func TestSet_DropsEdgeWhenConsumerLags(t *testing.T) {
	m := NewMonitor(&flakyPinger{}, time.Minute, zap.NewNop())

	// Fill the buffer with alternating transitions; overflow must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 32; i++ {
			m.Set(i%2 == 0)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Set blocked on a full edge channel")
	}
}

func TestRun_ProbesAndTransitions(t *testing.T) {
	pinger := &flakyPinger{}
	m := NewMonitor(pinger, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	waitEdge := func(want bool) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case online := <-m.Edges():
				if online == want {
					return
				}
			case <-deadline:
				t.Fatalf("no edge to online=%v", want)
			}
		}
	}

	waitEdge(true)
	if !m.Online() {
		t.Fatal("expected online after successful probe")
	}

	pinger.fail.Store(true)
	waitEdge(false)
	if m.Online() {
		t.Fatal("expected offline after failed probe")
	}
}
