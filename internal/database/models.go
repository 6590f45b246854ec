package database

import (
	"time"
)

// Trade status constants
const (
	StatusOpen             = "open"
	StatusClosedStopLoss   = "closed_stop_loss"
	StatusClosedTakeProfit = "closed_take_profit"
	StatusClosedManual     = "closed_manual"
)

// Trade represents one trade record. A record is inserted when a position
// opens and updated once when it closes; exit fields stay NULL while open.
type Trade struct {
	ID                int64      `json:"id"`
	Symbol            string     `json:"symbol"`
	Side              string     `json:"side"`
	EntryPrice        float64    `json:"entry_price"`
	ExitPrice         *float64   `json:"exit_price,omitempty"`
	Quantity          float64    `json:"quantity"`
	USDAmount         float64    `json:"usd_amount"`
	StopLossPercent   float64    `json:"stop_loss_percent"`
	TakeProfitPercent float64    `json:"take_profit_percent"`
	PnL               *float64   `json:"pnl,omitempty"`
	Status            string     `json:"status"`
	TradingMode       string     `json:"trading_mode"`
	Leverage          int        `json:"leverage"`
	EntryTime         time.Time  `json:"entry_time"`
	ExitTime          *time.Time `json:"exit_time,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// BalanceSnapshot summarizes account performance derived from the trade log.
type BalanceSnapshot struct {
	Balance         float64 `json:"balance"`
	StartingBalance float64 `json:"starting_balance"`
	TotalPnL        float64 `json:"total_pnl"`
	TotalTrades     int     `json:"total_trades"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
}
