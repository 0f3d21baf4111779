package events

import "testing"

func TestBus_Publish(t *testing.T) {
	var bus Bus
	var got []string

	bus.Subscribe(func(e Event) {
		switch ev := e.(type) {
		case IngestionCompleteEvent:
			got = append(got, "ingestion")
		case SweepCompleteEvent:
			if ev.Removed != 3 {
				t.Errorf("Removed = %d", ev.Removed)
			}
			got = append(got, "sweep")
		}
	})
	bus.Subscribe(func(Event) { got = append(got, "second") })

	bus.Publish(IngestionCompleteEvent{DocsStored: 2})
	bus.Publish(SweepCompleteEvent{Removed: 3})

	want := []string{"ingestion", "second", "sweep", "second"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBus_PublishWithoutListeners(t *testing.T) {
	var bus Bus
	bus.Publish(SweepCompleteEvent{})
}
