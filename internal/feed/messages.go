package feed

import (
	"encoding/json"
	"fmt"

	"exchange-flip-assistant/internal/domain"
)

// Message types delivered by the host bridge.
const (
	TypeSlotSnapshot    = "slot_snapshot"
	TypeWidgetSnapshot  = "widget_snapshot"
	TypeRecommendations = "recommendations"
)

// Envelope is the outer frame of every bridge message.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// slotPayload mirrors the bridge's slot snapshot encoding.
type slotPayload struct {
	Slots []slotJSON `json:"slots"`
}

type slotJSON struct {
	Index           int    `json:"index"`
	Side            string `json:"side"`
	ItemID          int    `json:"item_id"`
	QuantityTotal   int    `json:"quantity_total"`
	QuantityFilled  int    `json:"quantity_filled"`
	PricePerUnit    int64  `json:"price_per_unit"`
	AmountExchanged int64  `json:"amount_exchanged"`
	Status          string `json:"status"`
}

// widgetPayload mirrors the bridge's widget snapshot encoding.
type widgetPayload struct {
	OfferOpen      bool   `json:"offer_open"`
	Side           string `json:"side"`
	SelectedItemID int    `json:"selected_item_id"`
	QuantityText   string `json:"quantity_text"`
	PriceText      string `json:"price_text"`
}

// recommendationJSON mirrors the recommendation service encoding.
type recommendationJSON struct {
	ItemID        int     `json:"item_id"`
	ItemName      string  `json:"item_name"`
	BuyPrice      int64   `json:"buy_price"`
	SellPrice     int64   `json:"sell_price"`
	QuantityLimit int     `json:"quantity_limit"`
	Liquidity     float64 `json:"liquidity"`
	RiskScore     float64 `json:"risk_score"`
	Style         string  `json:"style"`
}

type recommendationsPayload struct {
	Recommendations []recommendationJSON `json:"recommendations"`
}

// DecodeSlotSnapshot converts a slot payload into the domain snapshot.
// The bridge must deliver exactly SlotCount slots.
func DecodeSlotSnapshot(raw json.RawMessage, ts int64) (domain.SlotSnapshot, error) {
	var p slotPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.SlotSnapshot{}, fmt.Errorf("decode slot snapshot: %w", err)
	}
	if len(p.Slots) != domain.SlotCount {
		return domain.SlotSnapshot{}, fmt.Errorf("decode slot snapshot: expected %d slots, got %d", domain.SlotCount, len(p.Slots))
	}

	snap := domain.SlotSnapshot{Timestamp: ts}
	for _, s := range p.Slots {
		if s.Index < 0 || s.Index >= domain.SlotCount {
			return domain.SlotSnapshot{}, fmt.Errorf("decode slot snapshot: slot index %d out of range", s.Index)
		}
		snap.Slots[s.Index] = domain.OrderSlot{
			Index:           s.Index,
			Side:            domain.OfferSide(s.Side),
			ItemID:          s.ItemID,
			QuantityTotal:   s.QuantityTotal,
			QuantityFilled:  s.QuantityFilled,
			PricePerUnit:    s.PricePerUnit,
			AmountExchanged: s.AmountExchanged,
			Status:          domain.SlotStatus(s.Status),
		}
	}
	return snap, nil
}

func DecodeWidgetSnapshot(raw json.RawMessage, ts int64) (domain.WidgetSnapshot, error) {
	var p widgetPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.WidgetSnapshot{}, fmt.Errorf("decode widget snapshot: %w", err)
	}
	side := domain.OfferSide(p.Side)
	if p.Side == "" {
		side = domain.SideNone
	}
	return domain.WidgetSnapshot{
		OfferOpen:      p.OfferOpen,
		Side:           side,
		SelectedItemID: p.SelectedItemID,
		QuantityText:   p.QuantityText,
		PriceText:      p.PriceText,
		Timestamp:      ts,
	}, nil
}

func DecodeRecommendations(raw json.RawMessage, ts int64) ([]domain.Recommendation, error) {
	var p recommendationsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	recs := make([]domain.Recommendation, 0, len(p.Recommendations))
	for _, r := range p.Recommendations {
		recs = append(recs, domain.Recommendation{
			ItemID:        r.ItemID,
			ItemName:      r.ItemName,
			BuyPrice:      r.BuyPrice,
			SellPrice:     r.SellPrice,
			QuantityLimit: r.QuantityLimit,
			Liquidity:     r.Liquidity,
			RiskScore:     r.RiskScore,
			Style:         r.Style,
			IssuedAt:      ts,
		})
	}
	return recs, nil
}
