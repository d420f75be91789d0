// Package assistant drives the step-by-step offer guidance for one focused
// flip. The step machine only interprets widget snapshots; creating or
// mutating flips is solely the ledger's business.
package assistant

import (
	"errors"

	"exchange-flip-assistant/internal/domain"
	"exchange-flip-assistant/internal/observability"
)

// ErrInvalidState is returned when auto-fill is requested outside
// AWAIT_QUANTITY or AWAIT_PRICE. The session is left untouched.
var ErrInvalidState = errors.New("auto-fill not valid in current step")

// ErrNoSession is returned when an operation requires a focused flip.
var ErrNoSession = errors.New("no flip focused")

// Step is the current position in the guided workflow.
type Step string

// Workflow step constants.
const (
	StepIdle          Step = "IDLE"
	StepAwaitSearch   Step = "AWAIT_SEARCH"
	StepAwaitQuantity Step = "AWAIT_QUANTITY"
	StepAwaitPrice    Step = "AWAIT_PRICE"
	StepAwaitConfirm  Step = "AWAIT_CONFIRM"
	StepDone          Step = "DONE"
)

// Session tracks one focused flip through the workflow.
type Session struct {
	FlipID     string
	Step       Step
	LastWidget domain.WidgetSnapshot
	UpdatedAt  int64 // last progression, milliseconds since epoch
}

// Options configures an Assistant.
type Options struct {
	// PriceOffset is added to the recommended buy price and subtracted
	// from the recommended sell price when auto-filling, trading a little
	// margin for faster fills. May be zero.
	PriceOffset int64
}

// Assistant owns the active session, if any. Like the ledger, it is driven
// from a single tick loop and performs no locking of its own.
type Assistant struct {
	priceOffset int64
	session     *Session
}

// New creates an assistant with no focused flip.
func New(opts Options) *Assistant {
	return &Assistant{priceOffset: opts.PriceOffset}
}

// Session returns a copy of the active session, or nil.
func (a *Assistant) Session() *Session {
	if a.session == nil {
		return nil
	}
	s := *a.session
	return &s
}

// Focus starts a session for the flip. Focusing a terminal flip is a no-op
// that leaves the assistant idle.
func (a *Assistant) Focus(flip *domain.Flip, now int64) {
	if flip == nil || flip.Terminal() {
		a.session = nil
		return
	}
	a.session = &Session{
		FlipID:    flip.FlipID,
		Step:      StepAwaitSearch,
		UpdatedAt: now,
	}
	observability.RecordSessionStep(string(StepAwaitSearch))
}

// Unfocus ends the session.
func (a *Assistant) Unfocus() {
	a.session = nil
}

// Observe advances the session against a fresh widget snapshot and the
// focused flip's current state. Returns the step after the snapshot was
// applied; StepIdle when nothing is focused.
func (a *Assistant) Observe(flip *domain.Flip, w domain.WidgetSnapshot) Step {
	if a.session == nil {
		return StepIdle
	}
	if flip == nil || flip.FlipID != a.session.FlipID || flip.Terminal() {
		// Focused flip dismissed, completed, or swapped out from
		// under us: drop to idle.
		a.session = nil
		return StepIdle
	}

	next := NextStep(a.session.Step, flip, w)
	if next != a.session.Step {
		a.session.Step = next
		a.session.UpdatedAt = w.Timestamp
		observability.RecordSessionStep(string(next))
	}
	a.session.LastWidget = w
	return next
}

// NextStep is the pure transition function of the workflow machine. It maps
// (current step, focused flip, widget snapshot) to the next step so the
// transition table can be tested exhaustively.
func NextStep(current Step, flip *domain.Flip, w domain.WidgetSnapshot) Step {
	if flip == nil || flip.Terminal() {
		return StepIdle
	}
	if current == StepIdle || current == StepDone {
		return current
	}

	// The user backing out or starting over trumps whatever step we were
	// on: a reopened offer editor with the wrong (or no) item restarts
	// the sequence.
	if w.OfferOpen && !itemMatches(flip, w) && current != StepAwaitSearch {
		return StepAwaitSearch
	}

	switch current {
	case StepAwaitSearch:
		if w.OfferOpen && itemMatches(flip, w) {
			return StepAwaitQuantity
		}
	case StepAwaitQuantity:
		if w.QuantityValue() > 0 {
			return StepAwaitPrice
		}
	case StepAwaitPrice:
		if w.PriceValue() > 0 {
			return StepAwaitConfirm
		}
	case StepAwaitConfirm:
		if !w.OfferOpen {
			// Closed editor is read as a submitted offer. The
			// ledger picks the trade up from the next slot
			// snapshot; nothing changes here.
			return StepDone
		}
	}
	return current
}

// itemMatches reports whether the editor shows the focused flip's item on
// the side the flip expects next.
func itemMatches(flip *domain.Flip, w domain.WidgetSnapshot) bool {
	if w.SelectedItemID != flip.ItemID {
		return false
	}
	expected := flip.ExpectedSide()
	return w.Side == expected || w.Side == domain.SideNone
}

// RequestAutoFill returns a command filling the field the session is waiting
// on. Valid only in AWAIT_QUANTITY and AWAIT_PRICE; any other step fails
// with ErrInvalidState and mutates nothing.
func (a *Assistant) RequestAutoFill(flip *domain.Flip) (domain.Command, error) {
	if a.session == nil {
		return domain.Command{}, ErrNoSession
	}
	if flip == nil || flip.FlipID != a.session.FlipID {
		return domain.Command{}, ErrNoSession
	}

	switch a.session.Step {
	case StepAwaitQuantity:
		qty := autofillQuantity(flip)
		if qty <= 0 {
			return domain.Command{}, ErrInvalidState
		}
		observability.RecordAutofill(string(domain.FieldQuantity))
		return domain.Command{Field: domain.FieldQuantity, Value: int64(qty)}, nil

	case StepAwaitPrice:
		price, ok := a.autofillPrice(flip)
		if !ok {
			return domain.Command{}, ErrInvalidState
		}
		observability.RecordAutofill(string(domain.FieldPrice))
		return domain.Command{Field: domain.FieldPrice, Value: price}, nil
	}

	observability.RecordInvalidStateCall()
	return domain.Command{}, ErrInvalidState
}

// autofillQuantity returns the recommended quantity for the expected action:
// the recommendation limit for buys, the unsold remainder (capped by the
// limit) for sells.
func autofillQuantity(flip *domain.Flip) int {
	switch flip.ExpectedSide() {
	case domain.SideBuy:
		return flip.QuantityLimit
	case domain.SideSell:
		remaining := flip.RemainingToSell()
		if flip.QuantityLimit > 0 && remaining > flip.QuantityLimit {
			remaining = flip.QuantityLimit
		}
		return remaining
	}
	return 0
}

// autofillPrice returns the recommended price adjusted by the configured
// offset: bid a little over for buys, undercut a little for sells.
func (a *Assistant) autofillPrice(flip *domain.Flip) (int64, bool) {
	switch flip.ExpectedSide() {
	case domain.SideBuy:
		if flip.RecommendedBuyPrice == nil {
			return 0, false
		}
		return *flip.RecommendedBuyPrice + a.priceOffset, true
	case domain.SideSell:
		if flip.RecommendedSellPrice == nil {
			return 0, false
		}
		price := *flip.RecommendedSellPrice - a.priceOffset
		if price < 1 {
			price = 1
		}
		return price, true
	}
	return 0, false
}
