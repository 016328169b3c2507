package pipeline

import (
	"reflect"
	"testing"
)

func TestEventBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewEventBus()
	var got []string
	bus.On("t", func(p any) { got = append(got, "a:"+p.(string)) })
	bus.On("t", func(p any) { got = append(got, "b:"+p.(string)) })
	bus.On("other", func(p any) { got = append(got, "other") })

	bus.Emit("t", "x")

	want := []string{"a:x", "b:x"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	off := bus.On("t", func(any) { calls++ })
	bus.Emit("t", nil)
	off()
	off()
	bus.Emit("t", nil)
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}

func TestEventBusNoReplay(t *testing.T) {
	bus := NewEventBus()
	bus.Emit("t", 1)
	calls := 0
	bus.On("t", func(any) { calls++ })
	if calls != 0 {
		t.Fatalf("late subscriber got %d replayed events", calls)
	}
}

func TestEventBusHandlerMaySubscribe(t *testing.T) {
	bus := NewEventBus()
	inner := 0
	bus.On("t", func(any) {
		bus.On("t", func(any) { inner++ })
	})
	bus.Emit("t", nil)
	if inner != 0 {
		t.Fatalf("handler added during emit ran in the same emit")
	}
}
