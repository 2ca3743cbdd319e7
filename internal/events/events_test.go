package events

import (
	"testing"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus(4)
	a, cancelA := bus.Subscribe()
	b, cancelB := bus.Subscribe()
	defer cancelA()
	defer cancelB()

	bus.Publish(Progress(1, 2))
	for _, ch := range []<-chan Event{a, b} {
		e := <-ch
		if e.Kind != KindProgress || e.Completed != 1 || e.Total != 2 {
			t.Fatalf("unexpected event %+v", e)
		}
	}
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus(1)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(Status("one"))
	bus.Publish(Status("two"))

	if e := <-ch; e.Text != "one" {
		t.Fatalf("want first event, got %+v", e)
	}
	select {
	case e := <-ch:
		t.Fatalf("want dropped event, got %+v", e)
	default:
	}
}

func TestBusWithoutSubscribers(t *testing.T) {
	bus := NewBus(0)
	bus.Publish(Done("SCAN"))
}

func TestCancelClosesChannel(t *testing.T) {
	bus := NewBus(1)
	ch, cancel := bus.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	bus.Publish(Status("after cancel"))
}

func TestMulti(t *testing.T) {
	var got []Kind
	m := Multi{PublisherFunc(func(e Event) { got = append(got, e.Kind) }), nil, Nop{}}
	m.Publish(Phase("SORT", "start"))
	if len(got) != 1 || got[0] != KindPhase {
		t.Fatalf("unexpected %v", got)
	}
}
