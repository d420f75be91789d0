package replay

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"exchange-flip-assistant/internal/domain"
)

// SessionEngine consumes the frames of a recorded session in order.
type SessionEngine interface {
	// OnSlotSnapshot is called for each recorded slot snapshot.
	// Snapshots are guaranteed to arrive in non-decreasing timestamp order.
	OnSlotSnapshot(ctx context.Context, snap domain.SlotSnapshot) error

	// OnWidgetSnapshot is called for each recorded widget snapshot.
	OnWidgetSnapshot(ctx context.Context, w domain.WidgetSnapshot) error

	// OnRecommendations is called when a recorded recommendation set arrives.
	OnRecommendations(ctx context.Context, recs []domain.Recommendation) error
}

// maxLineBytes bounds a single session log line.
const maxLineBytes = 1 << 20

// Runner replays a JSON-lines session log through an engine.
type Runner struct{}

// NewRunner creates a new replay runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Run streams records from r through the engine in recorded order. Returns
// ErrInvalidOrdering when a frame's timestamp precedes its predecessor's.
func (r *Runner) Run(ctx context.Context, src io.Reader, engine SessionEngine) error {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lastTs int64
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		rec, err := DecodeRecord(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Timestamp < lastTs {
			return fmt.Errorf("line %d: %w", line, ErrInvalidOrdering)
		}
		lastTs = rec.Timestamp

		if err := r.dispatch(ctx, engine, rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read session log: %w", err)
	}
	return nil
}

func (r *Runner) dispatch(ctx context.Context, engine SessionEngine, rec *Record) error {
	switch {
	case rec.SlotSnapshot != nil:
		return engine.OnSlotSnapshot(ctx, *rec.SlotSnapshot)
	case rec.Widget != nil:
		return engine.OnWidgetSnapshot(ctx, *rec.Widget)
	default:
		return engine.OnRecommendations(ctx, rec.Recommendations)
	}
}
