// Package monitor turns consecutive order-slot snapshots into discrete
// lifecycle events. Observation is pure: the same pair of snapshots always
// yields the same events, and nothing here mutates downstream state.
package monitor

import (
	"exchange-flip-assistant/internal/domain"
)

// Observe diffs two consecutive snapshots and returns the lifecycle events
// implied by the transition, slot by slot. Events for a given slot index are
// ordered by the slot's history; ordering across indices is by index and must
// not be relied upon.
func Observe(previous, current domain.SlotSnapshot) []domain.SlotEvent {
	var events []domain.SlotEvent
	for i := 0; i < domain.SlotCount; i++ {
		events = append(events, diffSlot(previous.Slots[i], current.Slots[i], current.Timestamp)...)
	}
	return events
}

// diffSlot compares one slot across two snapshots.
func diffSlot(prev, cur domain.OrderSlot, ts int64) []domain.SlotEvent {
	switch {
	case prev.IsEmpty() && cur.IsEmpty():
		return nil

	case prev.IsEmpty():
		return openEvents(cur, ts)

	case cur.IsEmpty():
		// Slot cleared or reused without an observed terminal state.
		// Emit CLEARED with the last known totals so the ledger can
		// still close out whatever was linked here.
		return []domain.SlotEvent{clearedEvent(prev, ts)}
	}

	if !prev.SameOffer(cur) || reused(prev, cur) {
		// Contents changed while occupied: treat as an implicit clear
		// of the old offer followed by the new offer opening. Slot
		// history is never silently dropped.
		events := []domain.SlotEvent{clearedEvent(prev, ts)}
		return append(events, openEvents(cur, ts)...)
	}

	delta := cur.QuantityFilled - prev.QuantityFilled

	switch cur.Status {
	case domain.SlotInProgress:
		if delta > 0 {
			return []domain.SlotEvent{fillEvent(domain.EventProgress, cur, delta, ts)}
		}
		return nil

	case domain.SlotFinished:
		if prev.Status == domain.SlotFinished {
			return nil // already reported
		}
		return []domain.SlotEvent{fillEvent(domain.EventFilled, cur, delta, ts)}

	case domain.SlotCancelled:
		if prev.Status == domain.SlotCancelled {
			return nil // already reported
		}
		// Partial fills before cancellation still count.
		return []domain.SlotEvent{fillEvent(domain.EventCancelled, cur, delta, ts)}
	}

	return nil
}

// reused reports observations that cannot belong to one offer occupancy:
// the fill count went backwards or the requested quantity changed, or a slot
// previously seen terminal is in progress again.
func reused(prev, cur domain.OrderSlot) bool {
	if cur.QuantityFilled < prev.QuantityFilled {
		return true
	}
	if cur.QuantityTotal != prev.QuantityTotal {
		return true
	}
	terminal := prev.Status == domain.SlotFinished || prev.Status == domain.SlotCancelled
	return terminal && cur.Status == domain.SlotInProgress
}

// openEvents reports a slot going from empty to occupied. When a polling gap
// swallowed intermediate states the offer may already carry fills or even be
// terminal; those are reported as follow-up events so no trade is dropped.
func openEvents(cur domain.OrderSlot, ts int64) []domain.SlotEvent {
	events := []domain.SlotEvent{{
		Kind:          domain.EventOpened,
		SlotIndex:     cur.Index,
		Side:          cur.Side,
		ItemID:        cur.ItemID,
		QuantityTotal: cur.QuantityTotal,
		PricePerUnit:  cur.PricePerUnit,
		Timestamp:     ts,
	}}

	switch cur.Status {
	case domain.SlotInProgress:
		if cur.QuantityFilled > 0 {
			events = append(events, fillEvent(domain.EventProgress, cur, cur.QuantityFilled, ts))
		}
	case domain.SlotFinished:
		events = append(events, fillEvent(domain.EventFilled, cur, cur.QuantityFilled, ts))
	case domain.SlotCancelled:
		events = append(events, fillEvent(domain.EventCancelled, cur, cur.QuantityFilled, ts))
	}

	return events
}

func fillEvent(kind domain.EventKind, cur domain.OrderSlot, delta int, ts int64) domain.SlotEvent {
	if delta < 0 {
		delta = 0
	}
	return domain.SlotEvent{
		Kind:           kind,
		SlotIndex:      cur.Index,
		Side:           cur.Side,
		ItemID:         cur.ItemID,
		QuantityDelta:  delta,
		QuantityFilled: cur.QuantityFilled,
		QuantityTotal:  cur.QuantityTotal,
		PricePerUnit:   cur.PricePerUnit,
		Timestamp:      ts,
	}
}

func clearedEvent(prev domain.OrderSlot, ts int64) domain.SlotEvent {
	return domain.SlotEvent{
		Kind:           domain.EventCleared,
		SlotIndex:      prev.Index,
		Side:           prev.Side,
		ItemID:         prev.ItemID,
		QuantityFilled: prev.QuantityFilled,
		QuantityTotal:  prev.QuantityTotal,
		PricePerUnit:   prev.PricePerUnit,
		Timestamp:      ts,
	}
}
