package replay

import (
	"encoding/json"
	"fmt"

	"exchange-flip-assistant/internal/domain"
	"exchange-flip-assistant/internal/feed"
)

// Record is one decoded frame from a recorded session log. Exactly one of
// SlotSnapshot, Widget or Recommendations is set based on Type.
type Record struct {
	Type            string
	Timestamp       int64
	SlotSnapshot    *domain.SlotSnapshot
	Widget          *domain.WidgetSnapshot
	Recommendations []domain.Recommendation
}

// DecodeRecord parses one JSON line of a session log. The line format is the
// live bridge envelope, so recorded sessions replay without conversion.
func DecodeRecord(line []byte) (*Record, error) {
	var env feed.Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("decode record envelope: %w", err)
	}

	rec := &Record{Type: env.Type, Timestamp: env.Timestamp}
	switch env.Type {
	case feed.TypeSlotSnapshot:
		snap, err := feed.DecodeSlotSnapshot(env.Payload, env.Timestamp)
		if err != nil {
			return nil, err
		}
		rec.SlotSnapshot = &snap
	case feed.TypeWidgetSnapshot:
		w, err := feed.DecodeWidgetSnapshot(env.Payload, env.Timestamp)
		if err != nil {
			return nil, err
		}
		rec.Widget = &w
	case feed.TypeRecommendations:
		recs, err := feed.DecodeRecommendations(env.Payload, env.Timestamp)
		if err != nil {
			return nil, err
		}
		rec.Recommendations = recs
	default:
		return nil, fmt.Errorf("decode record: unknown type %q", env.Type)
	}
	return rec, nil
}
