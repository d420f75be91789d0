// Package engine wires the offer monitor, the flip ledger and the workflow
// assistant into one snapshot-driven core. The engine is the single caller
// the ledger requires: every entry point serializes on one mutex, and no
// operation blocks or performs I/O beyond the retention stores.
package engine

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"exchange-flip-assistant/internal/assistant"
	"exchange-flip-assistant/internal/domain"
	"exchange-flip-assistant/internal/ledger"
	"exchange-flip-assistant/internal/monitor"
	"exchange-flip-assistant/internal/observability"
	"exchange-flip-assistant/internal/storage"
)

// ChangeHandler receives flip change notifications for presentation layers.
type ChangeHandler func(domain.FlipChange)

// Options configures an Engine.
type Options struct {
	Ledger    *ledger.Ledger
	Assistant *assistant.Assistant

	// HistoryStore receives terminal flips. Optional; nil disables
	// retention.
	HistoryStore storage.FlipHistoryStore
	// FillStore receives observed fill increments. Optional.
	FillStore storage.FillPointStore

	Logger logrus.FieldLogger
}

// Engine is the snapshot-driven core.
type Engine struct {
	mu sync.Mutex

	log       logrus.FieldLogger
	ledger    *ledger.Ledger
	assistant *assistant.Assistant
	history   storage.FlipHistoryStore
	fills     storage.FillPointStore

	prev    domain.SlotSnapshot
	hasPrev bool

	recommendations map[int]domain.Recommendation

	handlers []ChangeHandler
}

// New creates an engine around the given components.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		log:             log.WithField("component", "engine"),
		ledger:          opts.Ledger,
		assistant:       opts.Assistant,
		history:         opts.HistoryStore,
		fills:           opts.FillStore,
		recommendations: make(map[int]domain.Recommendation),
	}
}

// OnChange registers a flip change handler. Handlers run synchronously on
// the tick that produced the change and must not call back into the engine.
func (e *Engine) OnChange(h ChangeHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// SetRecommendations replaces the standing recommendation set.
func (e *Engine) SetRecommendations(recs []domain.Recommendation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recommendations = make(map[int]domain.Recommendation, len(recs))
	for _, r := range recs {
		e.recommendations[r.ItemID] = r
	}
}

// OnSlotSnapshot ingests one slot snapshot: diff against the previous one,
// apply the resulting events, record fills, and archive terminal flips.
func (e *Engine) OnSlotSnapshot(ctx context.Context, snap domain.SlotSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.hasPrev {
		// First observation: diff against an all-empty board so
		// offers already outstanding at startup are picked up.
		e.prev = domain.SlotSnapshot{}
		e.hasPrev = true
	}

	events := monitor.Observe(e.prev, snap)
	e.prev = snap

	var points []*domain.FillPoint
	for _, ev := range events {
		change := e.ledger.Apply(ev)
		if change == nil {
			continue
		}
		if ev.QuantityDelta > 0 {
			points = append(points, &domain.FillPoint{
				ItemID:       ev.ItemID,
				Side:         ev.Side,
				Quantity:     ev.QuantityDelta,
				PricePerUnit: ev.PricePerUnit,
				SlotIndex:    ev.SlotIndex,
				FlipID:       change.FlipID,
				TimestampMs:  ev.Timestamp,
			})
		}
		e.notify(*change)
	}

	e.recordFills(ctx, points)
	e.archiveTerminal(ctx)
	e.syncAssistant()
}

// OnWidgetSnapshot advances the guided workflow against a fresh widget
// observation.
func (e *Engine) OnWidgetSnapshot(w domain.WidgetSnapshot) assistant.Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assistant.Observe(e.focusedFlip(), w)
}

// AcceptRecommendation seeds a flip from the standing recommendation for the
// item. Returns false when no recommendation for the item is standing.
func (e *Engine) AcceptRecommendation(itemID int, now int64) (*domain.Flip, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.recommendations[itemID]
	if !ok {
		return nil, false
	}
	flip := e.ledger.AcceptRecommendation(rec, now)
	e.notify(domain.FlipChange{
		FlipID:    flip.FlipID,
		ItemID:    flip.ItemID,
		NewStatus: flip.Status,
		Flip:      flip,
	})
	return flip, true
}

// Focus starts guiding the user through the given flip.
func (e *Engine) Focus(flipID string, now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	flip, err := e.ledger.Get(flipID)
	if err != nil {
		return err
	}
	e.assistant.Focus(flip, now)
	return nil
}

// Unfocus ends the guided session.
func (e *Engine) Unfocus() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assistant.Unfocus()
}

// Dismiss removes a flip at the user's request.
func (e *Engine) Dismiss(ctx context.Context, flipID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	change, err := e.ledger.Dismiss(flipID)
	if err != nil {
		return err
	}
	e.notify(*change)
	e.archiveTerminal(ctx)
	e.syncAssistant()
	return nil
}

// RequestAutoFill returns a fill command for the focused flip's current
// step.
func (e *Engine) RequestAutoFill() (domain.Command, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assistant.RequestAutoFill(e.focusedFlip())
}

// Flips returns snapshots of all tracked flips.
func (e *Engine) Flips() []*domain.Flip {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Flips()
}

// Session returns a copy of the active workflow session, or nil.
func (e *Engine) Session() *assistant.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assistant.Session()
}

// focusedFlip resolves the session's flip to its live ledger state.
func (e *Engine) focusedFlip() *domain.Flip {
	sess := e.assistant.Session()
	if sess == nil {
		return nil
	}
	flip, err := e.ledger.Get(sess.FlipID)
	if err != nil {
		return nil
	}
	return flip
}

// syncAssistant drops the session when its flip left the ledger or reached
// a terminal status; DONE sessions end when the ledger confirms the trade.
func (e *Engine) syncAssistant() {
	sess := e.assistant.Session()
	if sess == nil {
		return
	}
	flip, err := e.ledger.Get(sess.FlipID)
	if err != nil || flip.Terminal() {
		e.assistant.Unfocus()
	}
}

func (e *Engine) recordFills(ctx context.Context, points []*domain.FillPoint) {
	if e.fills == nil || len(points) == 0 {
		return
	}
	if err := e.fills.InsertBulk(ctx, points); err != nil {
		e.log.WithError(err).Warn("recording fill points failed")
		return
	}
	for range points {
		observability.DefaultMetrics.FillsRecorded.Inc()
	}
}

// archiveTerminal hands terminal flips to the history store. Failures are
// logged and counted; retention must never stall event processing.
func (e *Engine) archiveTerminal(ctx context.Context) {
	if e.history == nil {
		return
	}
	for _, flip := range e.ledger.DrainArchived() {
		if err := e.history.Insert(ctx, flip); err != nil {
			e.log.WithError(err).WithField("flip", flip.FlipID).Error("archiving flip failed")
			observability.DefaultMetrics.ArchiveErrors.Inc()
			continue
		}
		observability.DefaultMetrics.FlipsArchived.Inc()
	}
}

func (e *Engine) notify(change domain.FlipChange) {
	for _, h := range e.handlers {
		h(change)
	}
}
