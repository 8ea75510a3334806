// Package ledger implements the virtual-ledger collaborator for simulated
// mode: a per-user cash/holdings document with average-cost-basis
// accounting and a leaderboard snapshot refreshed after each fill.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tradedesk/internal/domain"
)

// StartingCash is the virtual cash a new portfolio opens with.
const StartingCash = 1_000_000

// Ledger is safe for concurrent use across turns; per-order persistence is
// a single document save keyed by user.
type Ledger struct {
	portfolios  domain.PortfolioRepository
	leaderboard domain.LeaderboardRepository
	stocks      domain.StockDataRepository
	market      domain.MarketData
	tm          domain.TransactionManager
	logger      *slog.Logger
}

// New wires the ledger to its stores and the market-data collaborator used
// for market-order fills and P&L marks. The transaction manager scopes each
// fill's load-and-save to a single transaction.
func New(
	portfolios domain.PortfolioRepository,
	leaderboard domain.LeaderboardRepository,
	stocks domain.StockDataRepository,
	market domain.MarketData,
	tm domain.TransactionManager,
	logger *slog.Logger,
) *Ledger {
	return &Ledger{
		portfolios:  portfolios,
		leaderboard: leaderboard,
		stocks:      stocks,
		market:      market,
		tm:          tm,
		logger:      logger,
	}
}

// normalizeSymbol upper-cases and pins the symbol to an exchange suffix,
// defaulting to NSE.
func normalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !strings.HasSuffix(s, ".NS") && !strings.HasSuffix(s, ".BO") {
		s += ".NS"
	}
	return s
}

// PlaceSimulatedOrder fills an order against the user's virtual portfolio.
// BUY re-averages cost basis; SELL reduces quantity at unchanged average
// and removes the position at zero. Insufficient cash or shares are
// explicit rejections, never partial fills.
func (l *Ledger) PlaceSimulatedOrder(ctx context.Context, userID string, order domain.SimOrderRequest) (*domain.SimOrderResult, error) {
	symbol := normalizeSymbol(order.TradingSymbol)

	fillPrice := order.Price
	if order.OrderType == "MARKET" || fillPrice == 0 {
		quote, err := l.market.Quote(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("could not fetch price for %s: %w", symbol, err)
		}
		fillPrice = quote.CurrentPrice
	}
	if fillPrice == 0 {
		return nil, fmt.Errorf("could not determine price for %s", symbol)
	}

	totalValue := float64(order.Quantity) * fillPrice

	var portfolio *domain.SimPortfolio
	err := l.tm.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		portfolio, err = l.portfolios.Get(ctx, userID)
		if err != nil {
			return fmt.Errorf("load portfolio: %w", err)
		}
		if portfolio == nil {
			portfolio = &domain.SimPortfolio{
				UserID:   userID,
				Cash:     StartingCash,
				Holdings: map[string]domain.SimHolding{},
			}
		}
		if portfolio.Holdings == nil {
			portfolio.Holdings = map[string]domain.SimHolding{}
		}

		switch order.TransactionType {
		case "BUY":
			if portfolio.Cash < totalValue {
				return fmt.Errorf("insufficient virtual cash. Required: %.2f, Available: %.2f", totalValue, portfolio.Cash)
			}
			holding := portfolio.Holdings[symbol]
			newQty := holding.Quantity + order.Quantity
			newAvg := (float64(holding.Quantity)*holding.AveragePrice + float64(order.Quantity)*fillPrice) / float64(newQty)
			portfolio.Holdings[symbol] = domain.SimHolding{Quantity: newQty, AveragePrice: newAvg}
			portfolio.Cash -= totalValue

		case "SELL":
			holding, ok := portfolio.Holdings[symbol]
			if !ok || holding.Quantity < order.Quantity {
				return fmt.Errorf("insufficient shares. You have %d shares", holding.Quantity)
			}
			newQty := holding.Quantity - order.Quantity
			if newQty == 0 {
				delete(portfolio.Holdings, symbol)
			} else {
				// Average price does not change on sell.
				portfolio.Holdings[symbol] = domain.SimHolding{Quantity: newQty, AveragePrice: holding.AveragePrice}
			}
			portfolio.Cash += totalValue

		default:
			return fmt.Errorf("invalid transaction type %q", order.TransactionType)
		}

		if err := l.portfolios.Save(ctx, portfolio); err != nil {
			return fmt.Errorf("save portfolio: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := l.updateLeaderboardSnapshot(ctx, portfolio); err != nil {
		// Leaderboard sync is best-effort; the fill already persisted.
		l.logger.Warn("failed to update leaderboard snapshot", "user_id", userID, "error", err)
	}

	return &domain.SimOrderResult{
		Symbol:        symbol,
		Quantity:      order.Quantity,
		Price:         fillPrice,
		TotalValue:    totalValue,
		RemainingCash: portfolio.Cash,
	}, nil
}

// SimulatedHoldings lists the portfolio's positions marked against live
// quotes. A failed quote leaves its row priced at zero rather than failing
// the whole list.
func (l *Ledger) SimulatedHoldings(ctx context.Context, userID string) ([]domain.Holding, float64, error) {
	portfolio, err := l.portfolios.Get(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("load portfolio: %w", err)
	}
	if portfolio == nil {
		return []domain.Holding{}, StartingCash, nil
	}

	holdings := make([]domain.Holding, 0, len(portfolio.Holdings))
	for symbol, h := range portfolio.Holdings {
		var lastPrice float64
		if quote, err := l.market.Quote(ctx, symbol); err == nil {
			lastPrice = quote.CurrentPrice
		}

		value := float64(h.Quantity) * lastPrice
		pnl := (lastPrice - h.AveragePrice) * float64(h.Quantity)
		pnlPct := 0.0
		if invested := float64(h.Quantity) * h.AveragePrice; invested > 0 {
			pnlPct = pnl / invested * 100
		}

		holdings = append(holdings, domain.Holding{
			TradingSymbol: symbol,
			Quantity:      h.Quantity,
			AveragePrice:  round2(h.AveragePrice),
			LastPrice:     lastPrice,
			PnL:           round2(pnl),
			PnLPercentage: round2(pnlPct),
			Value:         round2(value),
		})
	}
	return holdings, portfolio.Cash, nil
}

// updateLeaderboardSnapshot recomputes total portfolio value and a simple
// diversification score (10 points per unique sector, capped at 100).
func (l *Ledger) updateLeaderboardSnapshot(ctx context.Context, portfolio *domain.SimPortfolio) error {
	totalValue := portfolio.Cash
	sectors := map[string]struct{}{}

	for symbol, h := range portfolio.Holdings {
		if h.Quantity <= 0 {
			continue
		}

		var price float64
		sector := ""

		// Local stock database first; live quote as fallback.
		if row, err := l.stocks.Get(ctx, symbol); err == nil && row != nil {
			price = row.CurrentPrice
			sector = row.Sector
		} else if quote, err := l.market.Quote(ctx, symbol); err == nil {
			price = quote.CurrentPrice
		}

		totalValue += float64(h.Quantity) * price
		if sector != "" && sector != "Unknown" {
			sectors[sector] = struct{}{}
		} else {
			// Sector unknown: count the symbol itself as a weak
			// diversification proxy.
			sectors[symbol] = struct{}{}
		}
	}

	score := len(sectors) * 10
	if score > 100 {
		score = 100
	}

	return l.leaderboard.Upsert(ctx, &domain.LeaderboardSnapshot{
		UserID:               portfolio.UserID,
		TotalValue:           totalValue,
		DiversificationScore: score,
		UpdatedAt:            time.Now(),
	})
}

func round2(v float64) float64 {
	return float64(int64(v*100+copysignHalf(v))) / 100
}

func copysignHalf(v float64) float64 {
	if v < 0 {
		return -0.5
	}
	return 0.5
}
