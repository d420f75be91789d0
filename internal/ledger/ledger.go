// Package ledger owns the flip collection. It consumes slot lifecycle events
// from the monitor, matches them against standing recommendations and active
// flips, and advances each matched flip through its state machine. Nothing
// here is fatal: every detected inconsistency resolves to a safe status and
// is reported outward.
package ledger

import (
	"sort"

	"github.com/sirupsen/logrus"

	"exchange-flip-assistant/internal/domain"
	"exchange-flip-assistant/internal/idhash"
	"exchange-flip-assistant/internal/observability"
)

// linkKey identifies one (slot index, side) occupancy. At most one flip is
// linked to a key at any time.
type linkKey struct {
	Slot int
	Side domain.OfferSide
}

// link tracks the flip bound to a slot occupancy together with the cumulative
// filled quantity already ingested, so re-delivered events never double-count.
type link struct {
	flipID     string
	applied    int
	prevStatus domain.FlipStatus // status before linking, for zero-fill reverts
}

// Options configures a Ledger.
type Options struct {
	// TaxRateBps is the sale tax in basis points. Zero means
	// domain.DefaultTaxRateBps.
	TaxRateBps int
	// Logger receives reconciliation warnings. Nil means the standard
	// logrus logger.
	Logger logrus.FieldLogger
}

// Ledger holds all tracked flips and their slot links. Callers must
// serialize access: flip transitions are not safe under concurrent
// application, and the host invokes the ledger from a single tick loop.
type Ledger struct {
	log        logrus.FieldLogger
	taxRateBps int

	flips map[string]*domain.Flip
	links map[linkKey]*link
	seq   uint64

	// archived buffers terminal flips until the retention policy drains
	// them.
	archived []*domain.Flip
}

// New creates an empty ledger.
func New(opts Options) *Ledger {
	rate := opts.TaxRateBps
	if rate == 0 {
		rate = domain.DefaultTaxRateBps
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{
		log:        log.WithField("component", "ledger"),
		taxRateBps: rate,
		flips:      make(map[string]*domain.Flip),
		links:      make(map[linkKey]*link),
	}
}

// AcceptRecommendation seeds a RECOMMENDED flip from a recommendation the
// user accepted. Returns a snapshot of the new flip.
func (l *Ledger) AcceptRecommendation(rec domain.Recommendation, now int64) *domain.Flip {
	l.seq++
	buy := rec.BuyPrice
	sell := rec.SellPrice
	flip := &domain.Flip{
		FlipID:               idhash.ComputeFlipID(rec.ItemID, domain.OriginRecommendation, now, l.seq),
		ItemID:               rec.ItemID,
		Status:               domain.StatusRecommended,
		Origin:               domain.OriginRecommendation,
		RecommendedBuyPrice:  &buy,
		RecommendedSellPrice: &sell,
		QuantityLimit:        rec.QuantityLimit,
		CreatedAt:            now,
		Sequence:             l.seq,
	}
	l.flips[flip.FlipID] = flip
	observability.RecordFlipTransition(string(domain.StatusRecommended))
	observability.UpdateLiveFlips(l.liveCount())
	return flip.Clone()
}

// Dismiss moves a non-terminal flip to DISMISSED and unlinks it.
func (l *Ledger) Dismiss(flipID string) (*domain.FlipChange, error) {
	flip, ok := l.flips[flipID]
	if !ok {
		return nil, ErrUnknownFlip
	}
	if flip.Terminal() {
		return nil, ErrTerminalFlip
	}

	old := flip.Status
	l.unlink(flip)
	flip.Status = domain.StatusDismissed
	l.archive(flip)
	observability.RecordFlipTransition(string(domain.StatusDismissed))
	observability.UpdateLiveFlips(l.liveCount())

	return &domain.FlipChange{
		FlipID:    flip.FlipID,
		ItemID:    flip.ItemID,
		OldStatus: old,
		NewStatus: domain.StatusDismissed,
		Flip:      flip.Clone(),
	}, nil
}

// Get returns a snapshot of one flip.
func (l *Ledger) Get(flipID string) (*domain.Flip, error) {
	flip, ok := l.flips[flipID]
	if !ok {
		return nil, ErrUnknownFlip
	}
	return flip.Clone(), nil
}

// Flips returns snapshots of all tracked flips ordered by creation.
func (l *Ledger) Flips() []*domain.Flip {
	result := make([]*domain.Flip, 0, len(l.flips))
	for _, f := range l.flips {
		result = append(result, f.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].Sequence < result[j].Sequence
	})
	return result
}

// DrainArchived removes and returns terminal flips buffered for retention.
// The retention collaborator persists them; once drained they are no longer
// tracked.
func (l *Ledger) DrainArchived() []*domain.Flip {
	drained := l.archived
	l.archived = nil
	for _, f := range drained {
		delete(l.flips, f.FlipID)
	}
	return drained
}

// Apply ingests one slot lifecycle event and returns the resulting flip
// change, or nil when the event matched nothing. Re-delivering an event with
// the same cumulative totals yields no further mutation.
func (l *Ledger) Apply(event domain.SlotEvent) *domain.FlipChange {
	observability.RecordSlotEvent(string(event.Kind))

	switch event.Kind {
	case domain.EventOpened:
		return l.applyOpened(event)
	case domain.EventProgress, domain.EventFilled, domain.EventCancelled, domain.EventCleared:
		return l.applyFill(event)
	}
	return nil
}

// applyOpened matches a newly observed offer to a flip, creating an organic
// flip for unmatched buys.
func (l *Ledger) applyOpened(event domain.SlotEvent) *domain.FlipChange {
	key := linkKey{Slot: event.SlotIndex, Side: event.Side}

	if lk, exists := l.links[key]; exists {
		// The monitor emits CLEARED before reusing a slot, so a
		// surviving link means observations desynchronized.
		l.log.WithFields(logrus.Fields{
			"slot": event.SlotIndex,
			"side": event.Side,
			"flip": lk.flipID,
		}).Warn("stale link on reopened slot, unlinking")
		observability.RecordStaleLink()
		if flip, ok := l.flips[lk.flipID]; ok {
			l.forceUnlink(flip, lk)
		}
		delete(l.links, key)
	}

	switch event.Side {
	case domain.SideBuy:
		return l.openBuy(key, event)
	case domain.SideSell:
		return l.openSell(key, event)
	}
	return nil
}

// openBuy links a buy offer to the best-matching flip.
// Preference order: most recently created RECOMMENDED flip for the item
// (last-recommended-wins, so stale recommendations are skipped), then an
// unlinked ACTIVE flip whose buy is still short of its limit (a single
// logical buy may span several slot occupancies when the user resubmits a
// partially filled order), then a fresh organic flip.
func (l *Ledger) openBuy(key linkKey, event domain.SlotEvent) *domain.FlipChange {
	if flip := l.pickRecommended(event.ItemID); flip != nil {
		old := flip.Status
		flip.Status = domain.StatusPendingBuy
		l.linkFlip(flip, key, old)
		observability.RecordFlipTransition(string(domain.StatusPendingBuy))
		return l.change(flip, old)
	}

	if flip := l.pickResumableBuy(event.ItemID); flip != nil {
		old := flip.Status
		l.linkFlip(flip, key, old)
		return l.change(flip, old)
	}

	// Organic flip: a buy with no open recommendation. The observed price
	// stands in for the missing recommendation.
	l.seq++
	implied := event.PricePerUnit
	flip := &domain.Flip{
		FlipID:              idhash.ComputeFlipID(event.ItemID, domain.OriginOrganic, event.Timestamp, l.seq),
		ItemID:              event.ItemID,
		Status:              domain.StatusPendingBuy,
		Origin:              domain.OriginOrganic,
		RecommendedBuyPrice: &implied,
		CreatedAt:           event.Timestamp,
		Sequence:            l.seq,
	}
	l.flips[flip.FlipID] = flip
	l.linkFlip(flip, key, domain.StatusPendingBuy)
	observability.RecordFlipTransition(string(domain.StatusPendingBuy))
	observability.UpdateLiveFlips(l.liveCount())
	return l.change(flip, "")
}

// openSell links a sell offer to the oldest unlinked ACTIVE flip for the
// item (FIFO approximates realized cost basis when multiple batches of the
// same item are held). Sells of untracked inventory are ignored.
func (l *Ledger) openSell(key linkKey, event domain.SlotEvent) *domain.FlipChange {
	flip := l.pickOldestActive(event.ItemID)
	if flip == nil {
		l.log.WithFields(logrus.Fields{
			"slot": event.SlotIndex,
			"item": event.ItemID,
		}).Debug("sell opened with no active flip, ignoring")
		return nil
	}

	old := flip.Status
	flip.Status = domain.StatusPendingSell
	l.linkFlip(flip, key, old)
	observability.RecordFlipTransition(string(domain.StatusPendingSell))
	return l.change(flip, old)
}

// applyFill routes PROGRESS/FILLED/CANCELLED/CLEARED to the flip linked to
// the event's slot.
func (l *Ledger) applyFill(event domain.SlotEvent) *domain.FlipChange {
	key := linkKey{Slot: event.SlotIndex, Side: event.Side}
	lk, ok := l.links[key]
	if !ok {
		// Activity on an untracked slot (inventory traded outside the
		// assistant). A gap here reconciles against nothing.
		return nil
	}

	flip, ok := l.flips[lk.flipID]
	if !ok {
		delete(l.links, key)
		return nil
	}

	if flip.ItemID != event.ItemID {
		// External desynchronization: the slot no longer holds what
		// the link says. Unlink defensively and revert to the last
		// consistent status rather than mutate against bad data.
		l.log.WithFields(logrus.Fields{
			"slot":      event.SlotIndex,
			"flip":      flip.FlipID,
			"flip_item": flip.ItemID,
			"slot_item": event.ItemID,
		}).Warn("linked slot item mismatch, unlinking")
		observability.RecordStaleLink()
		change := l.revertOccupancy(flip, lk)
		delete(l.links, key)
		return change
	}

	// Idempotence: only the positive remainder beyond what this occupancy
	// already contributed is ingested.
	delta := event.QuantityFilled - lk.applied
	if delta < 0 {
		delta = 0
	}
	lk.applied += delta

	if event.Kind == domain.EventCleared {
		l.log.WithFields(logrus.Fields{
			"slot": event.SlotIndex,
			"flip": flip.FlipID,
		}).Warn("slot cleared without terminal state, reconciling as cancellation")
		observability.RecordReconciliationGap()
	}

	if event.Side == domain.SideBuy {
		return l.applyBuyFill(key, lk, flip, event, delta)
	}
	return l.applySellFill(key, lk, flip, event, delta)
}

// applyBuyFill advances a PENDING_BUY (or resumed ACTIVE) flip.
func (l *Ledger) applyBuyFill(key linkKey, lk *link, flip *domain.Flip, event domain.SlotEvent, delta int) *domain.FlipChange {
	old := flip.Status

	if delta > 0 {
		flip.QuantityBought += delta
		flip.GrossSpent += int64(delta) * event.PricePerUnit
	}

	switch event.Kind {
	case domain.EventProgress:
		return l.change(flip, old)

	case domain.EventFilled:
		delete(l.links, key)
		flip.LinkedSlot = nil
		ts := event.Timestamp
		flip.BoughtAt = &ts
		if flip.Status == domain.StatusPendingBuy {
			flip.Status = domain.StatusActive
			observability.RecordFlipTransition(string(domain.StatusActive))
		}
		return l.change(flip, old)

	case domain.EventCancelled, domain.EventCleared:
		delete(l.links, key)
		flip.LinkedSlot = nil
		if lk.applied == 0 && flip.QuantityBought == 0 {
			// Nothing ever filled: the flip returns to where it
			// was before the order existed. An organic flip with
			// no fills never really existed.
			if flip.Origin == domain.OriginOrganic {
				delete(l.flips, flip.FlipID)
				observability.UpdateLiveFlips(l.liveCount())
				return nil
			}
			flip.Status = lk.prevStatus
			observability.RecordFlipTransition(string(flip.Status))
			return l.change(flip, old)
		}
		// Cancelled after a partial fill behaves as a completed
		// partial trade.
		ts := event.Timestamp
		flip.BoughtAt = &ts
		if flip.Status == domain.StatusPendingBuy {
			flip.Status = domain.StatusActive
			observability.RecordFlipTransition(string(domain.StatusActive))
		}
		return l.change(flip, old)
	}
	return nil
}

// applySellFill advances a PENDING_SELL flip, accruing tax per fill
// increment and completing the flip when everything bought has been sold.
func (l *Ledger) applySellFill(key linkKey, lk *link, flip *domain.Flip, event domain.SlotEvent, delta int) *domain.FlipChange {
	old := flip.Status

	if remaining := flip.RemainingToSell(); delta > remaining {
		l.log.WithFields(logrus.Fields{
			"flip":      flip.FlipID,
			"delta":     delta,
			"remaining": remaining,
		}).Warn("sell fill exceeds tracked inventory, capping")
		delta = remaining
	}

	if delta > 0 {
		flip.QuantitySold += delta
		flip.GrossReceived += int64(delta) * event.PricePerUnit
		flip.TaxPaid += domain.SaleTax(delta, event.PricePerUnit, l.taxRateBps)
	}

	switch event.Kind {
	case domain.EventProgress:
		if l.sellComplete(flip) {
			delete(l.links, key)
			flip.LinkedSlot = nil
			l.complete(flip, event.Timestamp)
		}
		return l.change(flip, old)

	case domain.EventFilled:
		delete(l.links, key)
		flip.LinkedSlot = nil
		if l.sellComplete(flip) {
			l.complete(flip, event.Timestamp)
		} else {
			// The offer covered only part of the held quantity;
			// the rest can be relisted.
			flip.Status = domain.StatusActive
			observability.RecordFlipTransition(string(domain.StatusActive))
		}
		return l.change(flip, old)

	case domain.EventCancelled, domain.EventCleared:
		delete(l.links, key)
		flip.LinkedSlot = nil
		if lk.applied == 0 {
			flip.Status = lk.prevStatus
			observability.RecordFlipTransition(string(flip.Status))
			return l.change(flip, old)
		}
		if l.sellComplete(flip) {
			l.complete(flip, event.Timestamp)
		} else {
			flip.Status = domain.StatusActive
			observability.RecordFlipTransition(string(domain.StatusActive))
		}
		return l.change(flip, old)
	}
	return nil
}

func (l *Ledger) sellComplete(flip *domain.Flip) bool {
	return flip.QuantityBought > 0 && flip.QuantitySold >= flip.QuantityBought
}

// complete finalizes a flip: realized profit is what came in, minus what
// went out, minus tax.
func (l *Ledger) complete(flip *domain.Flip, ts int64) {
	flip.Status = domain.StatusCompleted
	flip.RealizedProfit = flip.GrossReceived - flip.GrossSpent - flip.TaxPaid
	flip.SoldAt = &ts
	l.archive(flip)
	observability.RecordFlipTransition(string(domain.StatusCompleted))
	observability.RecordFlipCompleted(flip.RealizedProfit, flip.TaxPaid)
	observability.UpdateLiveFlips(l.liveCount())
}

// pickRecommended returns the most recently created unlinked RECOMMENDED
// flip for the item.
func (l *Ledger) pickRecommended(itemID int) *domain.Flip {
	return l.pick(func(f *domain.Flip) bool {
		return f.Status == domain.StatusRecommended && f.ItemID == itemID && f.LinkedSlot == nil
	}, true)
}

// pickResumableBuy returns the most recent unlinked ACTIVE flip for the item
// whose buy is still short of its recommendation limit.
func (l *Ledger) pickResumableBuy(itemID int) *domain.Flip {
	return l.pick(func(f *domain.Flip) bool {
		return f.Status == domain.StatusActive && f.ItemID == itemID && f.LinkedSlot == nil &&
			f.QuantityLimit > 0 && f.QuantityBought < f.QuantityLimit
	}, true)
}

// pickOldestActive returns the oldest unlinked ACTIVE flip for the item.
func (l *Ledger) pickOldestActive(itemID int) *domain.Flip {
	return l.pick(func(f *domain.Flip) bool {
		return f.Status == domain.StatusActive && f.ItemID == itemID && f.LinkedSlot == nil
	}, false)
}

// pick selects among eligible flips by creation order. Ties and multiple
// eligible candidates are resolved deterministically by sequence; more than
// one candidate is counted as an ambiguous match.
func (l *Ledger) pick(eligible func(*domain.Flip) bool, newest bool) *domain.Flip {
	var chosen *domain.Flip
	count := 0
	for _, f := range l.flips {
		if !eligible(f) {
			continue
		}
		count++
		if chosen == nil || newer(f, chosen) == newest {
			chosen = f
		}
	}
	if count > 1 {
		observability.RecordAmbiguousMatch()
	}
	return chosen
}

// newer reports whether a was created after b.
func newer(a, b *domain.Flip) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.Sequence > b.Sequence
}

func (l *Ledger) linkFlip(flip *domain.Flip, key linkKey, prev domain.FlipStatus) {
	slot := key.Slot
	flip.LinkedSlot = &slot
	l.links[key] = &link{flipID: flip.FlipID, prevStatus: prev}
}

// unlink removes any slot link pointing at the flip.
func (l *Ledger) unlink(flip *domain.Flip) {
	if flip.LinkedSlot == nil {
		return
	}
	for key, lk := range l.links {
		if lk.flipID == flip.FlipID {
			delete(l.links, key)
		}
	}
	flip.LinkedSlot = nil
}

// forceUnlink clears a stale link, reverting the flip when the occupancy
// contributed nothing.
func (l *Ledger) forceUnlink(flip *domain.Flip, lk *link) {
	flip.LinkedSlot = nil
	if lk.applied == 0 {
		flip.Status = lk.prevStatus
	}
}

// revertOccupancy unlinks a flip and returns it to its last consistent
// status when the broken occupancy never filled.
func (l *Ledger) revertOccupancy(flip *domain.Flip, lk *link) *domain.FlipChange {
	old := flip.Status
	flip.LinkedSlot = nil
	if lk.applied == 0 && flip.Status != lk.prevStatus {
		flip.Status = lk.prevStatus
		observability.RecordFlipTransition(string(flip.Status))
	}
	return l.change(flip, old)
}

func (l *Ledger) archive(flip *domain.Flip) {
	l.archived = append(l.archived, flip.Clone())
}

func (l *Ledger) change(flip *domain.Flip, old domain.FlipStatus) *domain.FlipChange {
	return &domain.FlipChange{
		FlipID:    flip.FlipID,
		ItemID:    flip.ItemID,
		OldStatus: old,
		NewStatus: flip.Status,
		Flip:      flip.Clone(),
	}
}

func (l *Ledger) liveCount() int {
	n := 0
	for _, f := range l.flips {
		if !f.Terminal() {
			n++
		}
	}
	return n
}

// LiveCount returns the number of non-terminal flips currently tracked.
func (l *Ledger) LiveCount() int {
	return l.liveCount()
}
