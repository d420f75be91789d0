package monitor

import (
	"testing"

	"exchange-flip-assistant/internal/domain"
)

func buySlot(index, itemID, total, filled int, price int64, status domain.SlotStatus) domain.OrderSlot {
	return domain.OrderSlot{
		Index:          index,
		Side:           domain.SideBuy,
		ItemID:         itemID,
		QuantityTotal:  total,
		QuantityFilled: filled,
		PricePerUnit:   price,
		Status:         status,
	}
}

func snapshotWith(ts int64, slots ...domain.OrderSlot) domain.SlotSnapshot {
	snap := domain.SlotSnapshot{Timestamp: ts}
	for i := range snap.Slots {
		snap.Slots[i] = domain.OrderSlot{Index: i, Side: domain.SideNone, Status: domain.SlotEmpty}
	}
	for _, s := range slots {
		snap.Slots[s.Index] = s
	}
	return snap
}

func TestObserve_NoChanges(t *testing.T) {
	prev := snapshotWith(1000)
	cur := snapshotWith(2000)

	events := Observe(prev, cur)
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestObserve_Opened(t *testing.T) {
	prev := snapshotWith(1000)
	cur := snapshotWith(2000, buySlot(0, 314, 100, 0, 500, domain.SlotInProgress))

	events := Observe(prev, cur)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Kind != domain.EventOpened {
		t.Errorf("kind = %s, want OPENED", e.Kind)
	}
	if e.SlotIndex != 0 || e.ItemID != 314 || e.Side != domain.SideBuy {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.QuantityTotal != 100 || e.PricePerUnit != 500 {
		t.Errorf("unexpected totals: %+v", e)
	}
	if e.Timestamp != 2000 {
		t.Errorf("timestamp = %d, want 2000", e.Timestamp)
	}
}

func TestObserve_Progress(t *testing.T) {
	prev := snapshotWith(1000, buySlot(0, 314, 100, 10, 500, domain.SlotInProgress))
	cur := snapshotWith(2000, buySlot(0, 314, 100, 35, 500, domain.SlotInProgress))

	events := Observe(prev, cur)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Kind != domain.EventProgress {
		t.Errorf("kind = %s, want PROGRESS", e.Kind)
	}
	if e.QuantityDelta != 25 {
		t.Errorf("delta = %d, want 25", e.QuantityDelta)
	}
	if e.QuantityFilled != 35 {
		t.Errorf("filled = %d, want 35", e.QuantityFilled)
	}
}

func TestObserve_NoEventWithoutFillChange(t *testing.T) {
	prev := snapshotWith(1000, buySlot(0, 314, 100, 10, 500, domain.SlotInProgress))
	cur := snapshotWith(2000, buySlot(0, 314, 100, 10, 500, domain.SlotInProgress))

	events := Observe(prev, cur)
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
}

func TestObserve_Filled(t *testing.T) {
	prev := snapshotWith(1000, buySlot(0, 314, 100, 60, 500, domain.SlotInProgress))
	cur := snapshotWith(2000, buySlot(0, 314, 100, 100, 500, domain.SlotFinished))

	events := Observe(prev, cur)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Kind != domain.EventFilled {
		t.Errorf("kind = %s, want FILLED", e.Kind)
	}
	if e.QuantityDelta != 40 {
		t.Errorf("delta = %d, want 40", e.QuantityDelta)
	}
}

func TestObserve_FilledNotRepeated(t *testing.T) {
	prev := snapshotWith(1000, buySlot(0, 314, 100, 100, 500, domain.SlotFinished))
	cur := snapshotWith(2000, buySlot(0, 314, 100, 100, 500, domain.SlotFinished))

	events := Observe(prev, cur)
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
}

func TestObserve_CancelledWithPartialFill(t *testing.T) {
	prev := snapshotWith(1000, buySlot(0, 314, 100, 30, 500, domain.SlotInProgress))
	cur := snapshotWith(2000, buySlot(0, 314, 100, 30, 500, domain.SlotCancelled))

	events := Observe(prev, cur)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Kind != domain.EventCancelled {
		t.Errorf("kind = %s, want CANCELLED", e.Kind)
	}
	if e.QuantityDelta != 0 {
		t.Errorf("delta = %d, want 0", e.QuantityDelta)
	}
	if e.QuantityFilled != 30 {
		t.Errorf("filled = %d, want 30", e.QuantityFilled)
	}
}

func TestObserve_Cleared(t *testing.T) {
	prev := snapshotWith(1000, buySlot(2, 314, 100, 100, 500, domain.SlotFinished))
	cur := snapshotWith(2000)

	events := Observe(prev, cur)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Kind != domain.EventCleared {
		t.Errorf("kind = %s, want CLEARED", e.Kind)
	}
	if e.SlotIndex != 2 || e.QuantityFilled != 100 {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestObserve_ImplicitClearOnNewOffer(t *testing.T) {
	// Same slot holds a different item without an observed empty state.
	prev := snapshotWith(1000, buySlot(0, 314, 100, 50, 500, domain.SlotInProgress))
	cur := snapshotWith(2000, buySlot(0, 999, 20, 0, 100, domain.SlotInProgress))

	events := Observe(prev, cur)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %v", len(events), events)
	}
	if events[0].Kind != domain.EventCleared || events[0].ItemID != 314 {
		t.Errorf("first event = %+v, want CLEARED for 314", events[0])
	}
	if events[1].Kind != domain.EventOpened || events[1].ItemID != 999 {
		t.Errorf("second event = %+v, want OPENED for 999", events[1])
	}
}

func TestObserve_ImplicitClearOnFillRegression(t *testing.T) {
	// Same item and side but fills went backwards: must be a new offer.
	prev := snapshotWith(1000, buySlot(0, 314, 100, 80, 500, domain.SlotInProgress))
	cur := snapshotWith(2000, buySlot(0, 314, 100, 5, 500, domain.SlotInProgress))

	events := Observe(prev, cur)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %v", len(events), events)
	}
	if events[0].Kind != domain.EventCleared {
		t.Errorf("first event = %s, want CLEARED", events[0].Kind)
	}
	if events[1].Kind != domain.EventOpened {
		t.Errorf("second event = %s, want OPENED", events[1].Kind)
	}
	if events[2].Kind != domain.EventProgress || events[2].QuantityDelta != 5 {
		t.Errorf("third event = %+v, want PROGRESS delta 5", events[2])
	}
}

func TestObserve_MissedTickOpenAndFill(t *testing.T) {
	// Offer appeared and partially filled within one polling gap.
	prev := snapshotWith(1000)
	cur := snapshotWith(2000, buySlot(0, 314, 100, 60, 500, domain.SlotInProgress))

	events := Observe(prev, cur)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != domain.EventOpened {
		t.Errorf("first event = %s, want OPENED", events[0].Kind)
	}
	if events[1].Kind != domain.EventProgress || events[1].QuantityDelta != 60 {
		t.Errorf("second event = %+v, want PROGRESS delta 60", events[1])
	}
}

func TestObserve_MissedTickOpenAndFinish(t *testing.T) {
	// Offer appeared already finished.
	prev := snapshotWith(1000)
	cur := snapshotWith(2000, buySlot(0, 314, 100, 100, 500, domain.SlotFinished))

	events := Observe(prev, cur)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != domain.EventOpened {
		t.Errorf("first event = %s, want OPENED", events[0].Kind)
	}
	if events[1].Kind != domain.EventFilled || events[1].QuantityDelta != 100 {
		t.Errorf("second event = %+v, want FILLED delta 100", events[1])
	}
}

func TestObserve_TerminalThenInProgressIsReuse(t *testing.T) {
	prev := snapshotWith(1000, buySlot(0, 314, 100, 100, 500, domain.SlotFinished))
	cur := snapshotWith(2000, buySlot(0, 314, 100, 0, 500, domain.SlotInProgress))

	events := Observe(prev, cur)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %v", len(events), events)
	}
	if events[0].Kind != domain.EventCleared {
		t.Errorf("first event = %s, want CLEARED", events[0].Kind)
	}
	if events[1].Kind != domain.EventOpened {
		t.Errorf("second event = %s, want OPENED", events[1].Kind)
	}
}

func TestObserve_IndependentSlots(t *testing.T) {
	prev := snapshotWith(1000,
		buySlot(0, 314, 100, 10, 500, domain.SlotInProgress),
		buySlot(5, 999, 50, 0, 100, domain.SlotInProgress),
	)
	cur := snapshotWith(2000,
		buySlot(0, 314, 100, 20, 500, domain.SlotInProgress),
		buySlot(5, 999, 50, 50, 100, domain.SlotFinished),
	)

	events := Observe(prev, cur)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].SlotIndex != 0 || events[0].Kind != domain.EventProgress {
		t.Errorf("slot 0 event = %+v", events[0])
	}
	if events[1].SlotIndex != 5 || events[1].Kind != domain.EventFilled {
		t.Errorf("slot 5 event = %+v", events[1])
	}
}

func TestObserve_Deterministic(t *testing.T) {
	prev := snapshotWith(1000, buySlot(0, 314, 100, 10, 500, domain.SlotInProgress))
	cur := snapshotWith(2000, buySlot(0, 314, 100, 100, 500, domain.SlotFinished))

	a := Observe(prev, cur)
	b := Observe(prev, cur)
	if len(a) != len(b) {
		t.Fatalf("runs differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("event %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
