package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"tradedesk/internal/domain"
)

const maxQueryRows = 20

// StockDataRepository queries the local stock table seeded out-of-band.
// It backs the query_market_data tool and quote fundamentals.
type StockDataRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

func NewStockDataRepository(cfg RepositoryConfig) *StockDataRepository {
	return &StockDataRepository{
		pool:   cfg.Pool,
		tables: cfg.Tables,
		logger: cfg.Logger,
	}
}

func (r *StockDataRepository) Get(ctx context.Context, symbol string) (*domain.StockRow, error) {
	query := fmt.Sprintf(`
		SELECT symbol, name, sector, current_price, pe_ratio, market_cap
		FROM %s
		WHERE symbol = $1`, r.tables.Stocks)

	var row domain.StockRow
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, strings.ToUpper(symbol)).Scan(
		&row.Symbol, &row.Name, &row.Sector, &row.CurrentPrice,
		&row.PERatio, &row.MarketCap)
	if err != nil {
		if isNoRows(err) {
			return nil, &domain.NotFoundError{Message: "stock not found"}
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return &row, nil
}

// Query filters and sorts the stock universe. Zero filter values mean no
// constraint; only whitelisted sort columns are interpolated.
func (r *StockDataRepository) Query(ctx context.Context, filter domain.StockQueryFilter) ([]domain.StockRow, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Sector != "" {
		where = append(where, "sector ILIKE "+arg("%"+filter.Sector+"%"))
	}
	if filter.MinPrice > 0 {
		where = append(where, "current_price >= "+arg(filter.MinPrice))
	}
	if filter.MaxPrice > 0 {
		where = append(where, "current_price <= "+arg(filter.MaxPrice))
	}
	if filter.MinPE > 0 {
		where = append(where, "pe_ratio >= "+arg(filter.MinPE))
	}
	if filter.MaxPE > 0 {
		where = append(where, "pe_ratio <= "+arg(filter.MaxPE))
	}
	if filter.MinMarketCap > 0 {
		where = append(where, "market_cap >= "+arg(filter.MinMarketCap))
	}

	query := fmt.Sprintf("SELECT symbol, name, sector, current_price, pe_ratio, market_cap FROM %s", r.tables.Stocks)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + sortColumn(filter.SortBy) + " DESC"
	query += fmt.Sprintf(" LIMIT %d", maxQueryRows)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stocks: %w", err)
	}
	defer rows.Close()

	out := []domain.StockRow{}
	for rows.Next() {
		var row domain.StockRow
		if err := rows.Scan(&row.Symbol, &row.Name, &row.Sector,
			&row.CurrentPrice, &row.PERatio, &row.MarketCap); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// sortColumn whitelists sortable columns; anything else sorts by market cap.
func sortColumn(sortBy string) string {
	switch sortBy {
	case "pe_ratio":
		return "pe_ratio"
	case "current_price":
		return "current_price"
	default:
		return "market_cap"
	}
}
