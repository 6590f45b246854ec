package bot

import (
	"time"
)

// Side is the direction of a position. BUY opens long, SELL opens short.
type Side string

const (
	SideLong  Side = "BUY"
	SideShort Side = "SELL"
)

// ExitReason describes why a position closed.
type ExitReason string

const (
	ExitNone       ExitReason = ""
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
)

// Position is one open trade, owned exclusively by the bot that opened it.
// It is removed on close, never partially modified.
type Position struct {
	ID                int64     `json:"id"`
	RecordID          int64     `json:"record_id"` // persistence id, 0 if the log write failed
	Symbol            string    `json:"symbol"`
	Side              Side      `json:"side"`
	EntryPrice        float64   `json:"entry_price"`
	Size              float64   `json:"size"`
	USDAmount         float64   `json:"usd_amount"`
	StopLossPercent   float64   `json:"stop_loss_percent"`
	TakeProfitPercent float64   `json:"take_profit_percent"`
	OpenedAt          time.Time `json:"opened_at"`
}

// StopLossPrice returns the price level that closes the position at a loss.
func (p *Position) StopLossPrice() float64 {
	if p.Side == SideLong {
		return p.EntryPrice * (1 - p.StopLossPercent/100)
	}
	return p.EntryPrice * (1 + p.StopLossPercent/100)
}

// TakeProfitPrice returns the price level that closes the position at a profit.
func (p *Position) TakeProfitPrice() float64 {
	if p.Side == SideLong {
		return p.EntryPrice * (1 + p.TakeProfitPercent/100)
	}
	return p.EntryPrice * (1 - p.TakeProfitPercent/100)
}

// CheckExit reports whether the given price has crossed the stop-loss or
// take-profit level.
func (p *Position) CheckExit(price float64) ExitReason {
	if p.Side == SideLong {
		if price <= p.StopLossPrice() {
			return ExitStopLoss
		}
		if price >= p.TakeProfitPrice() {
			return ExitTakeProfit
		}
		return ExitNone
	}

	if price >= p.StopLossPrice() {
		return ExitStopLoss
	}
	if price <= p.TakeProfitPrice() {
		return ExitTakeProfit
	}
	return ExitNone
}

// PnL computes the realized profit for closing at exitPrice. A nonzero
// feePercent deducts an approximate round-trip fee of
// feePercent% x (entry+exit) x size.
func (p *Position) PnL(exitPrice, feePercent float64) float64 {
	var gross float64
	if p.Side == SideLong {
		gross = (exitPrice - p.EntryPrice) * p.Size
	} else {
		gross = (p.EntryPrice - exitPrice) * p.Size
	}

	if feePercent > 0 {
		gross -= feePercent / 100 * (p.EntryPrice + exitPrice) * p.Size
	}

	return gross
}
