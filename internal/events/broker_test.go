package events

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func expectEvent(t *testing.T, ch chan Event, wantType string) Event {
	t.Helper()
	select {
	case got, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before event")
		}
		if got.Type != wantType {
			t.Fatalf("got type %s, want %s", got.Type, wantType)
		}
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestMemoryPublishSubscribe(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("a1")
	other := b.Subscribe("a2")

	b.Publish("a1", Event{Type: RoutePlanned, Data: map[string]any{"stops": 3}})
	got := expectEvent(t, ch, RoutePlanned)
	if got.Data["stops"].(int) != 3 {
		t.Fatalf("bad payload: %+v", got.Data)
	}
	select {
	case e := <-other:
		t.Fatalf("a2 must not see a1 events, got %+v", e)
	default:
	}

	b.Unsubscribe("a1", ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	// second unsubscribe is a no-op
	b.Unsubscribe("a1", ch)
	b.Publish("a1", Event{Type: RoutePlanned})
}

func TestMemoryDropsWhenSubscriberIsSlow(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("a1")
	for i := 0; i < 20; i++ {
		b.Publish("a1", Event{Type: RoutePlanned})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("want full buffer of %d, got %d", cap(ch), len(ch))
	}
}

func TestRedisPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedis(rdb)
	defer b.Close()

	ch := b.Subscribe("a1")
	b.Publish("a1", Event{Type: RoutePlanned, Data: map[string]any{"routeId": "r1"}})
	got := expectEvent(t, ch, RoutePlanned)
	if got.Data["routeId"] != "r1" {
		t.Fatalf("bad payload: %+v", got.Data)
	}

	b.Unsubscribe("a1", ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("no events expected after unsubscribe")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestNewRedisFromURLRejectsGarbage(t *testing.T) {
	if _, err := NewRedisFromURL("not a url"); err == nil {
		t.Fatal("expected parse error")
	}
}
