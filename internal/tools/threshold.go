package tools

import (
	"context"
	"log/slog"

	"tradedesk/internal/domain"
)

// ThresholdEnforcer vetoes real-mode order placements whose estimated
// notional value exceeds the user's configured per-trade ceiling.
type ThresholdEnforcer struct {
	market     domain.MarketData
	failClosed bool
	logger     *slog.Logger
}

// NewThresholdEnforcer builds the enforcer. failClosed controls the policy
// when no price can be resolved: the historical behavior waives the check
// (fail-open); fail-closed rejects the order instead.
func NewThresholdEnforcer(market domain.MarketData, failClosed bool, logger *slog.Logger) *ThresholdEnforcer {
	return &ThresholdEnforcer{
		market:     market,
		failClosed: failClosed,
		logger:     logger,
	}
}

// Check estimates the order's notional value and returns a veto result when
// it exceeds the ceiling. A nil result means the order may proceed to the
// executor. ceiling is the user's per-trade limit; callers skip the check
// entirely when no ceiling is configured.
func (e *ThresholdEnforcer) Check(ctx context.Context, call *domain.ToolCall, ceiling float64) *domain.ToolResult {
	qty, _ := IntArg(call.Args, "quantity")
	price := FloatArg(call.Args, "price")

	if price == 0 {
		if symbol := StringArg(call.Args, "tradingsymbol"); symbol != "" {
			quote, err := e.market.Quote(ctx, symbol)
			if err != nil {
				e.logger.Warn("threshold check could not resolve price",
					"symbol", symbol,
					"fail_closed", e.failClosed,
					"error", err,
				)
			} else {
				price = quote.CurrentPrice
			}
		}
	}

	if price == 0 {
		if e.failClosed {
			r := domain.Errorf("Could not verify order value against your configured threshold; order rejected.")
			return &r
		}
		// Unresolved price waives the check. A documented escape, kept
		// configurable rather than silently fixed.
		return nil
	}

	notional := float64(qty) * price
	if notional > ceiling {
		r := domain.Errorf("Order value (%.2f) exceeds your configured threshold of %.2f.", notional, ceiling)
		return &r
	}
	return nil
}
