package eventbus

import (
	"context"
	"testing"
)

type ping struct{ n int }
type pong struct{}

func TestDispatchByType(t *testing.T) {
	b := New()
	var pings []int
	pongs := 0
	unsub := SubscribeTo(b, func(_ context.Context, e ping) { pings = append(pings, e.n) })
	SubscribeTo(b, func(context.Context, pong) { pongs++ })

	PublishTo(b, context.Background(), ping{n: 1})
	PublishTo(b, context.Background(), pong{})
	unsub()
	PublishTo(b, context.Background(), ping{n: 2})

	if len(pings) != 1 || pings[0] != 1 {
		t.Fatalf("pings = %v", pings)
	}
	if pongs != 1 {
		t.Fatalf("pongs = %d", pongs)
	}
}

func TestUnsubscribeKeepsSiblings(t *testing.T) {
	b := New()
	var a, c int
	unA := SubscribeTo(b, func(context.Context, ping) { a++ })
	SubscribeTo(b, func(context.Context, ping) { c++ })
	unA()
	unA()
	PublishTo(b, context.Background(), ping{})
	if a != 0 || c != 1 {
		t.Fatalf("a=%d c=%d", a, c)
	}
}

func TestGlobalBus(t *testing.T) {
	Use(nil)
	Publish(context.Background(), ping{})
	if unsub := Subscribe(func(context.Context, ping) {}); unsub == nil {
		t.Fatalf("nil unsubscribe without a bus")
	}

	b := New()
	Use(b)
	defer Use(nil)
	got := 0
	Subscribe(func(context.Context, ping) { got++ })
	Publish(context.Background(), ping{})
	if got != 1 {
		t.Fatalf("global publish delivered %d events", got)
	}
}
