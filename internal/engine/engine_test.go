package engine

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"exchange-flip-assistant/internal/assistant"
	"exchange-flip-assistant/internal/domain"
	"exchange-flip-assistant/internal/ledger"
	"exchange-flip-assistant/internal/storage"
	"exchange-flip-assistant/internal/storage/memory"
)

type testEnv struct {
	engine  *Engine
	history *memory.FlipHistoryStore
	fills   *memory.FillPointStore
	changes []domain.FlipChange
}

func newTestEnv() *testEnv {
	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &testEnv{
		history: memory.NewFlipHistoryStore(),
		fills:   memory.NewFillPointStore(),
	}
	env.engine = New(Options{
		Ledger:       ledger.New(ledger.Options{Logger: log}),
		Assistant:    assistant.New(assistant.Options{PriceOffset: 1}),
		HistoryStore: env.history,
		FillStore:    env.fills,
		Logger:       log,
	})
	env.engine.OnChange(func(c domain.FlipChange) {
		env.changes = append(env.changes, c)
	})
	return env
}

func slot(index int, side domain.OfferSide, itemID, total, filled int, price int64, status domain.SlotStatus) domain.OrderSlot {
	return domain.OrderSlot{
		Index:          index,
		Side:           side,
		ItemID:         itemID,
		QuantityTotal:  total,
		QuantityFilled: filled,
		PricePerUnit:   price,
		Status:         status,
	}
}

func snapshot(ts int64, slots ...domain.OrderSlot) domain.SlotSnapshot {
	snap := domain.SlotSnapshot{Timestamp: ts}
	for i := range snap.Slots {
		snap.Slots[i] = domain.OrderSlot{Index: i, Side: domain.SideNone, Status: domain.SlotEmpty}
	}
	for _, s := range slots {
		snap.Slots[s.Index] = s
	}
	return snap
}

func testRecommendation() domain.Recommendation {
	return domain.Recommendation{
		ItemID:        314,
		ItemName:      "rune platebody",
		BuyPrice:      500,
		SellPrice:     800,
		QuantityLimit: 100,
	}
}

func TestAcceptRecommendation(t *testing.T) {
	env := newTestEnv()
	env.engine.SetRecommendations([]domain.Recommendation{testRecommendation()})

	flip, ok := env.engine.AcceptRecommendation(314, 1000)
	if !ok {
		t.Fatal("expected the standing recommendation to be accepted")
	}
	if flip.Status != domain.StatusRecommended {
		t.Errorf("status = %s, want RECOMMENDED", flip.Status)
	}
	if len(env.changes) != 1 || env.changes[0].NewStatus != domain.StatusRecommended {
		t.Errorf("changes = %+v, want one RECOMMENDED notification", env.changes)
	}

	if _, ok := env.engine.AcceptRecommendation(999, 1000); ok {
		t.Error("accepting an unknown item should fail")
	}
}

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.engine.SetRecommendations([]domain.Recommendation{testRecommendation()})
	flip, _ := env.engine.AcceptRecommendation(314, 1000)

	// Buy offer appears, then fills completely.
	env.engine.OnSlotSnapshot(ctx, snapshot(2000,
		slot(0, domain.SideBuy, 314, 100, 0, 500, domain.SlotInProgress)))
	env.engine.OnSlotSnapshot(ctx, snapshot(3000,
		slot(0, domain.SideBuy, 314, 100, 100, 500, domain.SlotFinished)))

	// Buy collected, sell offer placed, then fills completely.
	env.engine.OnSlotSnapshot(ctx, snapshot(4000,
		slot(3, domain.SideSell, 314, 100, 0, 800, domain.SlotInProgress)))
	env.engine.OnSlotSnapshot(ctx, snapshot(5000,
		slot(3, domain.SideSell, 314, 100, 100, 800, domain.SlotFinished)))

	// The completed flip moved to history.
	if got := env.engine.Flips(); len(got) != 0 {
		t.Errorf("live flips = %d, want 0 after completion", len(got))
	}
	archived, err := env.history.GetByID(ctx, flip.FlipID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if archived.Status != domain.StatusCompleted {
		t.Errorf("archived status = %s, want COMPLETED", archived.Status)
	}
	if archived.RealizedProfit != 28400 {
		t.Errorf("profit = %d, want 28400", archived.RealizedProfit)
	}
	if archived.TaxPaid != 1600 {
		t.Errorf("tax = %d, want 1600", archived.TaxPaid)
	}

	// Both fill increments were recorded against the flip.
	points, err := env.fills.GetByItem(ctx, 314, 0, 10000)
	if err != nil {
		t.Fatalf("GetByItem: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("fill points = %d, want 2", len(points))
	}
	if points[0].Side != domain.SideBuy || points[0].Quantity != 100 || points[0].FlipID != flip.FlipID {
		t.Errorf("buy point = %+v", points[0])
	}
	if points[1].Side != domain.SideSell || points[1].PricePerUnit != 800 {
		t.Errorf("sell point = %+v", points[1])
	}
}

func TestChangeNotificationsFollowLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.engine.SetRecommendations([]domain.Recommendation{testRecommendation()})
	env.engine.AcceptRecommendation(314, 1000)

	env.engine.OnSlotSnapshot(ctx, snapshot(2000,
		slot(0, domain.SideBuy, 314, 100, 0, 500, domain.SlotInProgress)))
	env.engine.OnSlotSnapshot(ctx, snapshot(3000,
		slot(0, domain.SideBuy, 314, 100, 100, 500, domain.SlotFinished)))

	want := []domain.FlipStatus{
		domain.StatusRecommended,
		domain.StatusPendingBuy,
		domain.StatusActive,
	}
	if len(env.changes) != len(want) {
		t.Fatalf("changes = %d, want %d", len(env.changes), len(want))
	}
	for i, status := range want {
		if env.changes[i].NewStatus != status {
			t.Errorf("change[%d] = %s, want %s", i, env.changes[i].NewStatus, status)
		}
	}
}

func TestFirstSnapshotSeedsBoard(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	// An offer already outstanding (and partly filled) at startup.
	env.engine.OnSlotSnapshot(ctx, snapshot(2000,
		slot(1, domain.SideBuy, 560, 50, 40, 230, domain.SlotInProgress)))

	flips := env.engine.Flips()
	if len(flips) != 1 {
		t.Fatalf("flips = %d, want 1", len(flips))
	}
	f := flips[0]
	if f.Origin != domain.OriginOrganic {
		t.Errorf("origin = %s, want ORGANIC", f.Origin)
	}
	if f.QuantityBought != 40 || f.GrossSpent != 9200 {
		t.Errorf("bought=%d spent=%d, want 40/9200", f.QuantityBought, f.GrossSpent)
	}
}

func TestFocusAndAutoFill(t *testing.T) {
	env := newTestEnv()
	env.engine.SetRecommendations([]domain.Recommendation{testRecommendation()})
	flip, _ := env.engine.AcceptRecommendation(314, 1000)

	if err := env.engine.Focus("no-such-flip", 2000); !errors.Is(err, ledger.ErrUnknownFlip) {
		t.Errorf("Focus err = %v, want ErrUnknownFlip", err)
	}
	if err := env.engine.Focus(flip.FlipID, 2000); err != nil {
		t.Fatalf("Focus: %v", err)
	}

	step := env.engine.OnWidgetSnapshot(domain.WidgetSnapshot{
		OfferOpen:      true,
		Side:           domain.SideBuy,
		SelectedItemID: 314,
		Timestamp:      2100,
	})
	if step != assistant.StepAwaitQuantity {
		t.Fatalf("step = %s, want AWAIT_QUANTITY", step)
	}

	cmd, err := env.engine.RequestAutoFill()
	if err != nil {
		t.Fatalf("RequestAutoFill: %v", err)
	}
	if cmd.Field != domain.FieldQuantity || cmd.Value != 100 {
		t.Errorf("cmd = %+v, want QUANTITY 100", cmd)
	}

	env.engine.Unfocus()
	if env.engine.Session() != nil {
		t.Error("session should be gone after Unfocus")
	}
	if _, err := env.engine.RequestAutoFill(); !errors.Is(err, assistant.ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestDismissArchivesAndEndsSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.engine.SetRecommendations([]domain.Recommendation{testRecommendation()})
	flip, _ := env.engine.AcceptRecommendation(314, 1000)
	if err := env.engine.Focus(flip.FlipID, 2000); err != nil {
		t.Fatalf("Focus: %v", err)
	}

	if err := env.engine.Dismiss(ctx, flip.FlipID); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	if env.engine.Session() != nil {
		t.Error("session should end when its flip is dismissed")
	}

	archived, err := env.history.GetByID(ctx, flip.FlipID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if archived.Status != domain.StatusDismissed {
		t.Errorf("status = %s, want DISMISSED", archived.Status)
	}

	if err := env.engine.Dismiss(ctx, flip.FlipID); !errors.Is(err, ledger.ErrUnknownFlip) {
		t.Errorf("second dismiss err = %v, want ErrUnknownFlip", err)
	}
}

func TestSessionEndsWhenFlipCompletes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.engine.SetRecommendations([]domain.Recommendation{testRecommendation()})
	flip, _ := env.engine.AcceptRecommendation(314, 1000)
	if err := env.engine.Focus(flip.FlipID, 2000); err != nil {
		t.Fatalf("Focus: %v", err)
	}

	env.engine.OnSlotSnapshot(ctx, snapshot(3000,
		slot(0, domain.SideBuy, 314, 100, 0, 500, domain.SlotInProgress)))
	env.engine.OnSlotSnapshot(ctx, snapshot(4000,
		slot(0, domain.SideBuy, 314, 100, 100, 500, domain.SlotFinished)))
	if env.engine.Session() == nil {
		t.Fatal("session should survive the buy leg")
	}

	env.engine.OnSlotSnapshot(ctx, snapshot(5000,
		slot(3, domain.SideSell, 314, 100, 0, 800, domain.SlotInProgress)))
	env.engine.OnSlotSnapshot(ctx, snapshot(6000,
		slot(3, domain.SideSell, 314, 100, 100, 800, domain.SlotFinished)))

	if env.engine.Session() != nil {
		t.Error("session should end once the flip completes")
	}
}

// failingHistoryStore rejects every insert.
type failingHistoryStore struct{}

func (failingHistoryStore) Insert(context.Context, *domain.Flip) error {
	return errors.New("store unavailable")
}

func (failingHistoryStore) GetByID(context.Context, string) (*domain.Flip, error) {
	return nil, storage.ErrNotFound
}

func (failingHistoryStore) GetByItem(context.Context, int) ([]*domain.Flip, error) {
	return nil, nil
}

func (failingHistoryStore) GetByTimeRange(context.Context, int64, int64) ([]*domain.Flip, error) {
	return nil, nil
}

var _ storage.FlipHistoryStore = failingHistoryStore{}

func TestArchiveFailureDoesNotStallProcessing(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)

	eng := New(Options{
		Ledger:       ledger.New(ledger.Options{Logger: log}),
		Assistant:    assistant.New(assistant.Options{}),
		HistoryStore: failingHistoryStore{},
		Logger:       log,
	})
	eng.SetRecommendations([]domain.Recommendation{testRecommendation()})
	flip, _ := eng.AcceptRecommendation(314, 1000)

	if err := eng.Dismiss(ctx, flip.FlipID); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}

	// Processing continues despite the archive failure.
	eng.OnSlotSnapshot(ctx, snapshot(2000,
		slot(0, domain.SideBuy, 560, 50, 0, 230, domain.SlotInProgress)))
	if got := eng.Flips(); len(got) != 1 {
		t.Errorf("flips = %d, want 1 after archive failure", len(got))
	}
}
