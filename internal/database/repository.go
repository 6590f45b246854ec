package database

import (
	"context"
	"fmt"
	"time"
)

// Repository provides data access methods over the trade log.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// LogTrade inserts a new trade record and returns its id.
func (r *Repository) LogTrade(ctx context.Context, trade *Trade) (int64, error) {
	if trade.EntryTime.IsZero() {
		trade.EntryTime = time.Now()
	}
	if trade.Status == "" {
		trade.Status = StatusOpen
	}

	query := `
		INSERT INTO trades (symbol, side, entry_price, quantity, usd_amount,
			stop_loss_percent, take_profit_percent, status, trading_mode, leverage, entry_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`
	err := r.db.Pool.QueryRow(
		ctx, query,
		trade.Symbol, trade.Side, trade.EntryPrice, trade.Quantity, trade.USDAmount,
		trade.StopLossPercent, trade.TakeProfitPercent, trade.Status,
		trade.TradingMode, trade.Leverage, trade.EntryTime,
	).Scan(&trade.ID, &trade.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert trade: %w", err)
	}

	return trade.ID, nil
}

// CloseTrade records the outcome of a trade.
func (r *Repository) CloseTrade(ctx context.Context, id int64, exitPrice, pnl float64, status string) error {
	query := `
		UPDATE trades
		SET exit_price = $2, pnl = $3, status = $4, exit_time = $5
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, id, exitPrice, pnl, status, time.Now())
	if err != nil {
		return fmt.Errorf("close trade %d: %w", id, err)
	}
	return nil
}

// GetTradeHistory returns trades most recent first.
func (r *Repository) GetTradeHistory(ctx context.Context, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, symbol, side, entry_price, exit_price, quantity, usd_amount,
		       stop_loss_percent, take_profit_percent, pnl, status, trading_mode,
		       leverage, entry_time, exit_time, created_at
		FROM trades
		ORDER BY entry_time DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query trade history: %w", err)
	}
	defer rows.Close()

	trades := make([]Trade, 0, limit)
	for rows.Next() {
		var t Trade
		err := rows.Scan(
			&t.ID, &t.Symbol, &t.Side, &t.EntryPrice, &t.ExitPrice, &t.Quantity,
			&t.USDAmount, &t.StopLossPercent, &t.TakeProfitPercent, &t.PnL,
			&t.Status, &t.TradingMode, &t.Leverage, &t.EntryTime, &t.ExitTime,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// GetBalanceSnapshot derives the account balance from the starting balance
// plus realized P&L over all closed trades.
func (r *Repository) GetBalanceSnapshot(ctx context.Context, startingBalance float64) (*BalanceSnapshot, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(pnl), 0),
		       COUNT(*) FILTER (WHERE pnl >= 0),
		       COUNT(*) FILTER (WHERE pnl < 0)
		FROM trades
		WHERE status != $1
	`

	var totalTrades, wins, losses int
	var totalPnL float64
	err := r.db.Pool.QueryRow(ctx, query, StatusOpen).Scan(&totalTrades, &totalPnL, &wins, &losses)
	if err != nil {
		return nil, fmt.Errorf("query balance snapshot: %w", err)
	}

	return &BalanceSnapshot{
		Balance:         startingBalance + totalPnL,
		StartingBalance: startingBalance,
		TotalPnL:        totalPnL,
		TotalTrades:     totalTrades,
		Wins:            wins,
		Losses:          losses,
	}, nil
}
