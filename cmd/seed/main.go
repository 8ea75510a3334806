package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"tradedesk/internal/config"
	"tradedesk/internal/repository/postgres"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed stock data")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("🚫 BLOCKED: Cannot run --drop-tables in production environment")
	}

	log.Printf("🌱 Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	log.Println("📋 Ensuring database schema is up to date...")
	if err := runSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	log.Println("📈 Seeding stock universe...")
	if err := seedStocks(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to seed stocks: %v", err)
	}
	log.Printf("🎉 Seeding complete! (%d stocks)", len(stockSeed))
}

func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	for _, table := range []string{
		tables.Conversations,
		tables.Profiles,
		tables.Stocks,
		tables.Portfolios,
		tables.Leaderboard,
	} {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return err
		}
	}
	return nil
}

// runSchema creates tables if they don't exist
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`); err != nil {
		return err
	}

	createConversations := `
		CREATE TABLE IF NOT EXISTS ` + tables.Conversations + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT 'New chat',
			mode TEXT NOT NULL DEFAULT 'real',
			messages JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createConversations); err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_`+tables.Conversations+
		`_user ON `+tables.Conversations+` (user_id, updated_at DESC)`); err != nil {
		return err
	}

	createProfiles := `
		CREATE TABLE IF NOT EXISTS ` + tables.Profiles + ` (
			user_id TEXT PRIMARY KEY,
			bio TEXT NOT NULL DEFAULT '',
			trade_threshold DOUBLE PRECISION,
			phone_number TEXT NOT NULL DEFAULT '',
			broker_api_key TEXT NOT NULL DEFAULT '',
			broker_token TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createProfiles); err != nil {
		return err
	}

	createStocks := `
		CREATE TABLE IF NOT EXISTS ` + tables.Stocks + ` (
			symbol TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			sector TEXT NOT NULL DEFAULT 'Unknown',
			current_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			pe_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
			market_cap BIGINT NOT NULL DEFAULT 0
		)
	`
	if _, err := pool.Exec(ctx, createStocks); err != nil {
		return err
	}

	createPortfolios := `
		CREATE TABLE IF NOT EXISTS ` + tables.Portfolios + ` (
			user_id TEXT PRIMARY KEY,
			cash DOUBLE PRECISION NOT NULL,
			holdings JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createPortfolios); err != nil {
		return err
	}

	createLeaderboard := `
		CREATE TABLE IF NOT EXISTS ` + tables.Leaderboard + ` (
			user_id TEXT PRIMARY KEY,
			total_value DOUBLE PRECISION NOT NULL,
			diversification_score INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createLeaderboard); err != nil {
		return err
	}

	return nil
}

type stockRow struct {
	symbol    string
	name      string
	sector    string
	price     float64
	pe        float64
	marketCap int64
}

// Baseline Nifty 50 rows. Prices and ratios are indicative figures for the
// query tool; refresh them out-of-band when accuracy matters.
var stockSeed = []stockRow{
	{"RELIANCE", "Reliance Industries", "Energy", 2950, 28.5, 19950000000000},
	{"TCS", "Tata Consultancy Services", "Information Technology", 4100, 32.1, 14800000000000},
	{"HDFCBANK", "HDFC Bank", "Financial Services", 1650, 19.8, 12500000000000},
	{"ICICIBANK", "ICICI Bank", "Financial Services", 1180, 18.9, 8300000000000},
	{"BHARTIARTL", "Bharti Airtel", "Telecommunication", 1520, 65.2, 8900000000000},
	{"INFY", "Infosys", "Information Technology", 1850, 27.4, 7700000000000},
	{"SBIN", "State Bank of India", "Financial Services", 830, 10.5, 7400000000000},
	{"LT", "Larsen & Toubro", "Construction", 3650, 35.8, 5000000000000},
	{"ITC", "ITC", "Fast Moving Consumer Goods", 465, 27.9, 5800000000000},
	{"HINDUNILVR", "Hindustan Unilever", "Fast Moving Consumer Goods", 2480, 57.3, 5800000000000},
	{"BAJFINANCE", "Bajaj Finance", "Financial Services", 7200, 32.6, 4450000000000},
	{"MARUTI", "Maruti Suzuki India", "Automobile", 12500, 28.4, 3900000000000},
	{"SUNPHARMA", "Sun Pharmaceutical", "Healthcare", 1720, 38.2, 4100000000000},
	{"HCLTECH", "HCL Technologies", "Information Technology", 1590, 26.5, 4300000000000},
	{"KOTAKBANK", "Kotak Mahindra Bank", "Financial Services", 1810, 19.2, 3600000000000},
	{"TITAN", "Titan Company", "Consumer Durables", 3400, 87.5, 3000000000000},
	{"TATAMOTORS", "Tata Motors", "Automobile", 990, 8.9, 3300000000000},
	{"AXISBANK", "Axis Bank", "Financial Services", 1150, 13.6, 3500000000000},
	{"NTPC", "NTPC", "Power", 360, 16.8, 3500000000000},
	{"ULTRACEMCO", "UltraTech Cement", "Construction Materials", 11200, 44.7, 3200000000000},
	{"ADANIENT", "Adani Enterprises", "Metals & Mining", 3100, 90.3, 3500000000000},
	{"ASIANPAINT", "Asian Paints", "Consumer Durables", 2900, 55.4, 2800000000000},
	{"ONGC", "Oil & Natural Gas Corporation", "Energy", 270, 7.8, 3400000000000},
	{"ADANIPORTS", "Adani Ports", "Services", 1400, 31.2, 3000000000000},
	{"BAJAJFINSV", "Bajaj Finserv", "Financial Services", 1620, 31.9, 2600000000000},
	{"WIPRO", "Wipro", "Information Technology", 520, 23.7, 2700000000000},
	{"POWERGRID", "Power Grid Corporation", "Power", 320, 18.4, 3000000000000},
	{"M&M", "Mahindra & Mahindra", "Automobile", 2850, 29.8, 3500000000000},
	{"COALINDIA", "Coal India", "Metals & Mining", 480, 8.1, 3000000000000},
	{"NESTLEIND", "Nestle India", "Fast Moving Consumer Goods", 2500, 74.6, 2400000000000},
	{"JSWSTEEL", "JSW Steel", "Metals & Mining", 920, 27.3, 2250000000000},
	{"TATASTEEL", "Tata Steel", "Metals & Mining", 165, 42.5, 2050000000000},
	{"HDFCLIFE", "HDFC Life Insurance", "Financial Services", 640, 82.4, 1400000000000},
	{"SBILIFE", "SBI Life Insurance", "Financial Services", 1480, 69.8, 1500000000000},
	{"GRASIM", "Grasim Industries", "Construction Materials", 2650, 41.2, 1750000000000},
	{"TECHM", "Tech Mahindra", "Information Technology", 1680, 58.3, 1650000000000},
	{"BRITANNIA", "Britannia Industries", "Fast Moving Consumer Goods", 5800, 62.7, 1400000000000},
	{"INDUSINDBK", "IndusInd Bank", "Financial Services", 1440, 12.4, 1100000000000},
	{"CIPLA", "Cipla", "Healthcare", 1560, 30.4, 1250000000000},
	{"DRREDDY", "Dr. Reddy's Laboratories", "Healthcare", 1280, 19.6, 1050000000000},
	{"EICHERMOT", "Eicher Motors", "Automobile", 4900, 33.5, 1350000000000},
	{"HEROMOTOCO", "Hero MotoCorp", "Automobile", 5300, 26.8, 1050000000000},
	{"HINDALCO", "Hindalco Industries", "Metals & Mining", 660, 14.6, 1480000000000},
	{"DIVISLAB", "Divi's Laboratories", "Healthcare", 5900, 79.2, 1550000000000},
	{"APOLLOHOSP", "Apollo Hospitals", "Healthcare", 7000, 108.9, 1000000000000},
	{"BAJAJ-AUTO", "Bajaj Auto", "Automobile", 9500, 33.2, 2650000000000},
	{"TATACONSUM", "Tata Consumer Products", "Fast Moving Consumer Goods", 1100, 85.6, 1050000000000},
	{"BPCL", "Bharat Petroleum", "Energy", 310, 5.2, 1350000000000},
	{"BEL", "Bharat Electronics", "Capital Goods", 300, 52.8, 2200000000000},
}

func seedStocks(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	query := `
		INSERT INTO ` + tables.Stocks + ` (symbol, name, sector, current_price, pe_ratio, market_cap)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			current_price = EXCLUDED.current_price,
			pe_ratio = EXCLUDED.pe_ratio,
			market_cap = EXCLUDED.market_cap
	`
	start := time.Now()
	for _, s := range stockSeed {
		if _, err := pool.Exec(ctx, query, s.symbol, s.name, s.sector, s.price, s.pe, s.marketCap); err != nil {
			return err
		}
	}
	log.Printf("   seeded %d rows in %s", len(stockSeed), time.Since(start).Round(time.Millisecond))
	return nil
}
