package bot

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"crypto-trading-controller/internal/database"
	"crypto-trading-controller/internal/events"
	"crypto-trading-controller/internal/market"
	"crypto-trading-controller/internal/strategy"
)

// fakeExchange is a scriptable market.ExchangeClient.
type fakeExchange struct {
	mu        sync.Mutex
	prices    map[string]float64
	candles   map[string][]market.Candle
	klinesErr map[string]error
	orderErr  error
	orders    []market.OrderResult
	balance   float64
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		prices:    make(map[string]float64),
		candles:   make(map[string][]market.Candle),
		klinesErr: make(map[string]error),
		balance:   10000,
	}
}

func (f *fakeExchange) GetKlines(symbol, interval string, limit int) ([]market.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.klinesErr[symbol]; err != nil {
		return nil, err
	}
	return f.candles[symbol], nil
}

func (f *fakeExchange) GetCurrentPrice(symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.prices[symbol]; ok {
		return p, nil
	}
	return 0, market.ErrNoData
}

func (f *fakeExchange) PlaceOrder(symbol, side string, quantity float64) (*market.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	order := market.OrderResult{
		Symbol:    symbol,
		OrderID:   int64(len(f.orders) + 1),
		Side:      side,
		Price:     f.prices[symbol],
		Quantity:  quantity,
		Status:    "FILLED",
		Simulated: true,
	}
	f.orders = append(f.orders, order)
	return &order, nil
}

func (f *fakeExchange) GetBalance(asset string) (*market.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &market.Balance{Asset: asset, Free: f.balance, Total: f.balance}, nil
}

func (f *fakeExchange) Mode() market.TradingMode { return market.ModeSpot }
func (f *fakeExchange) Leverage() int            { return 1 }

func (f *fakeExchange) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

// fakeStore records persistence calls and can be scripted to fail.
type fakeStore struct {
	mu       sync.Mutex
	logged   []database.Trade
	closed   []string // close statuses in order
	logErr   error
	closeErr error
	nextID   int64
}

func (s *fakeStore) LogTrade(ctx context.Context, trade *database.Trade) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logErr != nil {
		return 0, s.logErr
	}
	s.nextID++
	trade.ID = s.nextID
	s.logged = append(s.logged, *trade)
	return s.nextID, nil
}

func (s *fakeStore) CloseTrade(ctx context.Context, id int64, exitPrice, pnl float64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr != nil {
		return s.closeErr
	}
	s.closed = append(s.closed, status)
	return nil
}

// breakoutCandles is a flat series with a final candle that breaks the
// 8-period high (up) or low (down) by a confirming overshoot.
func breakoutCandles(up bool) []market.Candle {
	closes := make([]float64, 0, 12)
	for i := 0; i < 11; i++ {
		closes = append(closes, 100)
	}
	if up {
		closes = append(closes, 100.5)
	} else {
		closes = append(closes, 99.5)
	}

	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 60000,
			Open:      c,
			High:      c * 1.001,
			Low:       c * 0.999,
			Close:     c,
			Volume:    1000,
			CloseTime: int64(i+1) * 60000,
		}
	}
	return candles
}

func TestPositionExitLevels(t *testing.T) {
	long := &Position{Side: SideLong, EntryPrice: 100, StopLossPercent: 2, TakeProfitPercent: 3}

	if got := long.CheckExit(100); got != ExitNone {
		t.Errorf("expected no exit at entry price, got %s", got)
	}
	if got := long.CheckExit(98); got != ExitStopLoss {
		t.Errorf("expected stop loss at 98, got %q", got)
	}
	if got := long.CheckExit(103); got != ExitTakeProfit {
		t.Errorf("expected take profit at 103, got %q", got)
	}

	short := &Position{Side: SideShort, EntryPrice: 100, StopLossPercent: 2, TakeProfitPercent: 3}

	if got := short.CheckExit(102); got != ExitStopLoss {
		t.Errorf("expected short stop loss at 102, got %q", got)
	}
	if got := short.CheckExit(97); got != ExitTakeProfit {
		t.Errorf("expected short take profit at 97, got %q", got)
	}
}

func TestPositionPnL(t *testing.T) {
	long := &Position{Side: SideLong, EntryPrice: 100, Size: 2}

	if pnl := long.PnL(103, 0); pnl != 6 {
		t.Errorf("expected gross pnl 6, got %f", pnl)
	}

	// 0.1% round-trip fee on (100+103)*2 notional.
	want := 6 - 0.001*(100+103)*2
	if pnl := long.PnL(103, 0.1); math.Abs(pnl-want) > 1e-9 {
		t.Errorf("expected fee-adjusted pnl %f, got %f", want, pnl)
	}

	short := &Position{Side: SideShort, EntryPrice: 100, Size: 2}
	if pnl := short.PnL(97, 0); pnl != 6 {
		t.Errorf("expected short pnl 6, got %f", pnl)
	}
}

func TestRunOnceOpensPosition(t *testing.T) {
	ex := newFakeExchange()
	ex.candles["BTCUSDT"] = breakoutCandles(true)
	ex.prices["BTCUSDT"] = 100.5
	store := &fakeStore{}

	b, err := NewTradingBot(ex, "BTCUSDT", Options{Strategy: strategy.Breakout, Store: store})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	b.RunOnce(context.Background())

	status := b.Status()
	if status.OpenPositions != 1 {
		t.Fatalf("expected 1 open position, got %d", status.OpenPositions)
	}
	if status.Positions[0].Side != SideLong {
		t.Errorf("expected long position, got %s", status.Positions[0].Side)
	}
	if status.Positions[0].Size <= 0 {
		t.Errorf("expected positive size, got %f", status.Positions[0].Size)
	}
	if ex.orderCount() != 1 {
		t.Errorf("expected 1 order placed, got %d", ex.orderCount())
	}
	if len(store.logged) != 1 || store.logged[0].Status != database.StatusOpen {
		t.Errorf("expected one open trade logged, got %+v", store.logged)
	}
	if status.Positions[0].RecordID == 0 {
		t.Error("expected persistence record id on the position")
	}
}

func TestSingleSlotBlocksSecondEntry(t *testing.T) {
	ex := newFakeExchange()
	ex.candles["BTCUSDT"] = breakoutCandles(true)
	ex.prices["BTCUSDT"] = 100.5

	b, err := NewTradingBot(ex, "BTCUSDT", Options{Strategy: strategy.Breakout})
	if err != nil {
		t.Fatal(err)
	}

	b.RunOnce(context.Background())
	b.RunOnce(context.Background())

	if got := b.Status().OpenPositions; got != 1 {
		t.Errorf("single-slot bot opened %d positions", got)
	}
}

func TestCooldownBlocksReentry(t *testing.T) {
	ex := newFakeExchange()
	ex.candles["BTCUSDT"] = breakoutCandles(true)
	ex.prices["BTCUSDT"] = 100.5

	// Multi-pair allows 2 per symbol, so only the cooldown stands in the way.
	b, err := NewMultiPairBot(ex, []string{"BTCUSDT"}, Options{Strategy: strategy.Breakout})
	if err != nil {
		t.Fatal(err)
	}

	b.RunOnce(context.Background())
	b.RunOnce(context.Background())

	if got := b.Status().OpenPositions; got != 1 {
		t.Errorf("expected cooldown to block re-entry, got %d positions", got)
	}
}

func TestCooldownIsPerSymbol(t *testing.T) {
	ex := newFakeExchange()
	ex.candles["BTCUSDT"] = breakoutCandles(true)
	ex.candles["ETHUSDT"] = breakoutCandles(true)
	ex.prices["BTCUSDT"] = 100.5
	ex.prices["ETHUSDT"] = 100.5

	b, err := NewMultiPairBot(ex, []string{"BTCUSDT", "ETHUSDT"}, Options{Strategy: strategy.Breakout})
	if err != nil {
		t.Fatal(err)
	}

	// BTCUSDT traded moments ago; ETHUSDT must not be blocked by it.
	b.mu.Lock()
	b.lastEntry["BTCUSDT"] = time.Now()
	b.mu.Unlock()

	b.RunOnce(context.Background())

	status := b.Status()
	if status.OpenPositions != 1 {
		t.Fatalf("expected exactly 1 position, got %d", status.OpenPositions)
	}
	if status.Positions[0].Symbol != "ETHUSDT" {
		t.Errorf("expected ETHUSDT entry, got %s", status.Positions[0].Symbol)
	}
}

func TestPartialFailureSkipsSymbolOnly(t *testing.T) {
	ex := newFakeExchange()
	ex.klinesErr["BTCUSDT"] = errors.New("exchange timeout")
	ex.candles["ETHUSDT"] = breakoutCandles(true)
	ex.prices["ETHUSDT"] = 100.5

	b, err := NewMultiPairBot(ex, []string{"BTCUSDT", "ETHUSDT"}, Options{Strategy: strategy.Breakout})
	if err != nil {
		t.Fatal(err)
	}

	b.RunOnce(context.Background())

	status := b.Status()
	if status.OpenPositions != 1 || status.Positions[0].Symbol != "ETHUSDT" {
		t.Errorf("expected ETHUSDT to trade despite BTCUSDT failure, got %+v", status.Positions)
	}
}

func TestCloseOnStopLossReportsToKillSwitchAndStore(t *testing.T) {
	ex := newFakeExchange()
	ex.prices["BTCUSDT"] = 97.9 // below the 98 stop
	store := &fakeStore{}

	b, err := NewTradingBot(ex, "BTCUSDT", Options{Strategy: strategy.Breakout, Store: store})
	if err != nil {
		t.Fatal(err)
	}

	b.mu.Lock()
	b.positions = append(b.positions, &Position{
		ID: 1, RecordID: 7, Symbol: "BTCUSDT", Side: SideLong,
		EntryPrice: 100, Size: 5, StopLossPercent: 2, TakeProfitPercent: 3,
	})
	b.mu.Unlock()

	b.RunOnce(context.Background())

	status := b.Status()
	if status.OpenPositions != 0 {
		t.Fatalf("expected position closed, got %d open", status.OpenPositions)
	}
	if status.KillSwitch.Losses != 1 || status.KillSwitch.ConsecutiveLosses != 1 {
		t.Errorf("expected the loss recorded on the kill switch, got %+v", status.KillSwitch)
	}
	if len(store.closed) != 1 || store.closed[0] != database.StatusClosedStopLoss {
		t.Errorf("expected stop-loss close persisted, got %v", store.closed)
	}
}

func TestCloseOnTakeProfit(t *testing.T) {
	ex := newFakeExchange()
	ex.prices["BTCUSDT"] = 103.2
	store := &fakeStore{}

	b, err := NewTradingBot(ex, "BTCUSDT", Options{Strategy: strategy.Breakout, Store: store})
	if err != nil {
		t.Fatal(err)
	}

	b.mu.Lock()
	b.positions = append(b.positions, &Position{
		ID: 1, RecordID: 3, Symbol: "BTCUSDT", Side: SideLong,
		EntryPrice: 100, Size: 5, StopLossPercent: 2, TakeProfitPercent: 3,
	})
	b.mu.Unlock()

	b.RunOnce(context.Background())

	status := b.Status()
	if status.KillSwitch.Wins != 1 {
		t.Errorf("expected win recorded, got %+v", status.KillSwitch)
	}
	if len(store.closed) != 1 || store.closed[0] != database.StatusClosedTakeProfit {
		t.Errorf("expected take-profit close persisted, got %v", store.closed)
	}
}

func TestKillSwitchBlocksTick(t *testing.T) {
	ex := newFakeExchange()
	ex.candles["BTCUSDT"] = breakoutCandles(true)
	ex.prices["BTCUSDT"] = 100.5

	b, err := NewTradingBot(ex, "BTCUSDT", Options{Strategy: strategy.Breakout})
	if err != nil {
		t.Fatal(err)
	}

	b.ks.RecordTrade(-1)
	b.ks.RecordTrade(-1)
	b.ks.RecordTrade(-1)
	if !b.IsKillSwitchActive() {
		t.Fatal("expected triggered kill switch")
	}

	b.RunOnce(context.Background())
	if ex.orderCount() != 0 {
		t.Errorf("triggered kill switch must block all entries, got %d orders", ex.orderCount())
	}

	b.ResetKillSwitch()
	if b.IsKillSwitchActive() {
		t.Error("reset must re-arm the switch")
	}

	b.RunOnce(context.Background())
	if ex.orderCount() != 1 {
		t.Errorf("expected trading to resume after reset, got %d orders", ex.orderCount())
	}
}

func TestTripOnCloseSuppressesRestOfTick(t *testing.T) {
	ex := newFakeExchange()
	ex.candles["BTCUSDT"] = breakoutCandles(true)
	ex.prices["BTCUSDT"] = 97.9

	b, err := NewTradingBot(ex, "BTCUSDT", Options{Strategy: strategy.Breakout, KillSwitchThreshold: 1})
	if err != nil {
		t.Fatal(err)
	}

	// Two losing positions: the first close trips the switch, the second
	// close and all entries must be suppressed within the same tick.
	b.mu.Lock()
	for i := int64(1); i <= 2; i++ {
		b.positions = append(b.positions, &Position{
			ID: i, Symbol: "BTCUSDT", Side: SideLong,
			EntryPrice: 100, Size: 1, StopLossPercent: 2, TakeProfitPercent: 3,
		})
	}
	b.mu.Unlock()

	b.RunOnce(context.Background())

	status := b.Status()
	if !status.KillSwitch.Triggered {
		t.Fatal("expected kill switch to trip on the first close")
	}
	if status.OpenPositions != 1 {
		t.Errorf("expected second position untouched after trip, got %d open", status.OpenPositions)
	}
	if ex.orderCount() != 0 {
		t.Errorf("expected no entries after trip, got %d orders", ex.orderCount())
	}
}

func TestStoreFailuresAreSwallowed(t *testing.T) {
	ex := newFakeExchange()
	ex.candles["BTCUSDT"] = breakoutCandles(true)
	ex.prices["BTCUSDT"] = 100.5
	store := &fakeStore{logErr: errors.New("db down"), closeErr: errors.New("db down")}

	b, err := NewTradingBot(ex, "BTCUSDT", Options{Strategy: strategy.Breakout, Store: store})
	if err != nil {
		t.Fatal(err)
	}

	b.RunOnce(context.Background())

	status := b.Status()
	if status.OpenPositions != 1 {
		t.Fatalf("position must open even when persistence fails, got %d", status.OpenPositions)
	}
	if status.Positions[0].RecordID != 0 {
		t.Errorf("failed log write must leave record id 0, got %d", status.Positions[0].RecordID)
	}

	// Drop the price to the stop: the close must advance in-memory state too.
	ex.mu.Lock()
	ex.prices["BTCUSDT"] = 97.0
	ex.mu.Unlock()

	b.RunOnce(context.Background())
	if got := b.Status().OpenPositions; got != 0 {
		t.Errorf("close must proceed despite persistence failure, got %d open", got)
	}
}

func TestConstructorValidation(t *testing.T) {
	ex := newFakeExchange()

	if _, err := NewMultiPairBot(ex, nil, Options{}); !errors.Is(err, ErrNoSymbols) {
		t.Errorf("expected ErrNoSymbols, got %v", err)
	}
	if _, err := NewHighFreqMultiPairBot(ex, []string{}, Options{}); !errors.Is(err, ErrNoSymbols) {
		t.Errorf("expected ErrNoSymbols, got %v", err)
	}
	if _, err := NewTradingBot(ex, "", Options{}); !errors.Is(err, ErrNoSymbols) {
		t.Errorf("expected ErrNoSymbols for empty symbol, got %v", err)
	}
	if _, err := NewTradingBot(nil, "BTCUSDT", Options{}); err == nil {
		t.Error("expected error for nil client")
	}
}

func TestHighFreqConfiguration(t *testing.T) {
	ex := newFakeExchange()

	b, err := NewHighFreqBot(ex, "BTCUSDT", Options{})
	if err != nil {
		t.Fatal(err)
	}

	if b.interval != "5m" || b.cooldown != 30*time.Second || b.maxPerSymbol != 3 {
		t.Errorf("unexpected high-freq shape: %s/%v/%d", b.interval, b.cooldown, b.maxPerSymbol)
	}
	if !b.fastDispatch || b.feePercent != 0.1 {
		t.Errorf("expected fast dispatch with fee approximation, got %v/%f", b.fastDispatch, b.feePercent)
	}
	if b.sizer.RiskPercent != 1.5 {
		t.Errorf("expected default risk biased to 1.5, got %f", b.sizer.RiskPercent)
	}

	status := b.Status()
	if status.KillSwitch.Threshold != 15 || status.KillSwitch.PnLFloor != -100 {
		t.Errorf("unexpected kill switch config: %+v", status.KillSwitch)
	}

	// Risk bias is capped at 3% and the stop/take-profit floors apply.
	b, err = NewHighFreqBot(ex, "BTCUSDT", Options{
		RiskPercent:     2.5,
		StopLossPercent: 1.0, TakeProfitPercent: 1.0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if b.sizer.RiskPercent != 3.0 {
		t.Errorf("expected risk capped at 3.0, got %f", b.sizer.RiskPercent)
	}
	if b.stopLossPercent != 1.5 || b.takeProfitPercent != 2.0 {
		t.Errorf("expected 1.5/2.0 floors, got %f/%f", b.stopLossPercent, b.takeProfitPercent)
	}
}

func TestMultiPairSplitsRiskBudget(t *testing.T) {
	ex := newFakeExchange()

	b, err := NewMultiPairBot(ex, []string{"BTCUSDT", "ETHUSDT"}, Options{RiskPercent: 2.0})
	if err != nil {
		t.Fatal(err)
	}
	if b.sizer.RiskPercent != 1.0 {
		t.Errorf("expected risk split to 1.0 per symbol, got %f", b.sizer.RiskPercent)
	}

	// High-freq multi splits first, then applies the 1.5x bias.
	b, err = NewHighFreqMultiPairBot(ex, []string{"BTCUSDT", "ETHUSDT"}, Options{RiskPercent: 2.0})
	if err != nil {
		t.Fatal(err)
	}
	if b.sizer.RiskPercent != 1.5 {
		t.Errorf("expected split risk biased to 1.5, got %f", b.sizer.RiskPercent)
	}
	if b.Status().KillSwitch.PnLFloor != -200 {
		t.Errorf("expected -200 floor for multi variant, got %f", b.Status().KillSwitch.PnLFloor)
	}
}

func TestTrackedVariantRunsMultiplePositionLifecycles(t *testing.T) {
	ex := newFakeExchange()

	b, err := NewTrackedTradingBot(ex, "BTCUSDT", Options{})
	if err != nil {
		t.Fatal(err)
	}

	if b.interval != "1h" || b.cooldown != 300*time.Second || b.maxPerSymbol != 3 {
		t.Errorf("unexpected tracked shape: %s/%v/%d", b.interval, b.cooldown, b.maxPerSymbol)
	}
	if b.fastDispatch || b.feePercent != 0 {
		t.Errorf("tracked variant must use the full dispatch path, got %v/%f", b.fastDispatch, b.feePercent)
	}
	if b.Variant() != "single_pair_tracked" {
		t.Errorf("unexpected variant name %s", b.Variant())
	}
	if b.Status().KillSwitch.PnLFloor != 0 {
		t.Errorf("tracked variant must use the streak-only kill switch, got floor %f",
			b.Status().KillSwitch.PnLFloor)
	}
}

func TestFetchFailurePublishesErrorEvent(t *testing.T) {
	ex := newFakeExchange()
	ex.klinesErr["BTCUSDT"] = errors.New("exchange timeout")

	bus := events.NewEventBus()
	errored := make(chan events.Event, 1)
	bus.Subscribe(events.EventError, func(e events.Event) {
		errored <- e
	})

	b, err := NewTradingBot(ex, "BTCUSDT", Options{Strategy: strategy.Breakout, Bus: bus})
	if err != nil {
		t.Fatal(err)
	}

	b.RunOnce(context.Background())

	select {
	case e := <-errored:
		if e.Data["source"] != "single_pair" {
			t.Errorf("expected the variant as source, got %v", e.Data["source"])
		}
		if e.Data["error"] != "exchange timeout" {
			t.Errorf("expected the underlying error carried, got %v", e.Data["error"])
		}
	case <-time.After(time.Second):
		t.Fatal("no error event published for the failed fetch")
	}
}

func TestOrderFailurePublishesErrorEvent(t *testing.T) {
	ex := newFakeExchange()
	ex.candles["BTCUSDT"] = breakoutCandles(true)
	ex.prices["BTCUSDT"] = 100.5
	ex.orderErr = errors.New("insufficient margin")

	bus := events.NewEventBus()
	errored := make(chan events.Event, 1)
	bus.Subscribe(events.EventError, func(e events.Event) {
		errored <- e
	})

	b, err := NewTradingBot(ex, "BTCUSDT", Options{Strategy: strategy.Breakout, Bus: bus})
	if err != nil {
		t.Fatal(err)
	}

	b.RunOnce(context.Background())

	if got := b.Status().OpenPositions; got != 0 {
		t.Errorf("failed order must not open a position, got %d", got)
	}
	select {
	case e := <-errored:
		if e.Data["error"] != "insufficient margin" {
			t.Errorf("expected the order error carried, got %v", e.Data["error"])
		}
	case <-time.After(time.Second):
		t.Fatal("no error event published for the failed order")
	}
}

func TestStatusAlwaysComplete(t *testing.T) {
	ex := newFakeExchange()

	b, err := NewMultiPairBot(ex, []string{"BTCUSDT", "ETHUSDT"}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	status := b.Status()
	if status.Variant != "multi_pair" {
		t.Errorf("unexpected variant %s", status.Variant)
	}
	if len(status.Symbols) != 2 {
		t.Errorf("expected 2 symbols, got %v", status.Symbols)
	}
	if status.Positions == nil {
		t.Error("positions must be present even when empty")
	}
	if status.KillSwitch.State != "armed" {
		t.Errorf("expected armed kill switch, got %s", status.KillSwitch.State)
	}
	if status.CooldownSeconds != 300 || status.MaxPerSymbol != 2 {
		t.Errorf("unexpected cooldown/cap: %d/%d", status.CooldownSeconds, status.MaxPerSymbol)
	}
	if status.TradingMode != market.ModeSpot || status.Leverage != 1 {
		t.Errorf("unexpected mode/leverage: %s/%d", status.TradingMode, status.Leverage)
	}
}
