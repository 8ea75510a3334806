// Package tools holds the declarative tool catalog, the argument
// normalizer, the per-trade threshold enforcer, and the executor that maps
// model function calls onto the brokerage, market-data, and virtual-ledger
// collaborators.
package tools

import "tradedesk/internal/domain"

var symbolParam = &domain.Schema{
	Type:        domain.TypeString,
	Description: "The stock symbol (e.g., RELIANCE, TCS).",
}

// marketDeclarations are the read-only market tools shared by both modes.
func marketDeclarations() []domain.ToolDeclaration {
	return []domain.ToolDeclaration{
		{
			Name:        domain.ToolGetStockInfo,
			Description: "Get live price and fundamentals for a specific stock.",
			Parameters: &domain.Schema{
				Type:       domain.TypeObject,
				Properties: map[string]*domain.Schema{"symbol": symbolParam},
				Required:   []string{"symbol"},
			},
		},
		{
			Name:        domain.ToolGetMarketMovers,
			Description: "Get top gaining and losing stocks in the market (Nifty 50).",
			Parameters:  &domain.Schema{Type: domain.TypeObject},
		},
		{
			Name:        domain.ToolScreenStocks,
			Description: "Find or recommend stocks based on a strategy (bullish/bearish). Use this when user asks for recommendations or ideas.",
			Parameters: &domain.Schema{
				Type: domain.TypeObject,
				Properties: map[string]*domain.Schema{
					"strategy": {
						Type:        domain.TypeString,
						Description: "The strategy to use (bullish or bearish).",
						Enum:        []string{"bullish", "bearish"},
					},
				},
				Required: []string{"strategy"},
			},
		},
		{
			Name:        domain.ToolGetStockHistory,
			Description: "Get historical stock data for analysis.",
			Parameters: &domain.Schema{
				Type: domain.TypeObject,
				Properties: map[string]*domain.Schema{
					"symbol": symbolParam,
					"period": {
						Type:        domain.TypeString,
						Description: "Time period (1d, 5d, 1mo, 3mo, 6mo, 1y, 5y). Default 1mo.",
					},
				},
				Required: []string{"symbol"},
			},
		},
		{
			Name:        domain.ToolGetCompanyNews,
			Description: "Get recent news for a company.",
			Parameters: &domain.Schema{
				Type:       domain.TypeObject,
				Properties: map[string]*domain.Schema{"symbol": symbolParam},
				Required:   []string{"symbol"},
			},
		},
		{
			Name:        domain.ToolQueryMarketData,
			Description: "Query/Screen the stock market database for stocks matching specific criteria (sector, price, PE, market cap). Use this for broad questions like 'Find cheap banks' or 'Stocks with high market cap'.",
			Parameters: &domain.Schema{
				Type: domain.TypeObject,
				Properties: map[string]*domain.Schema{
					"sector":         {Type: domain.TypeString, Description: "Sector to filter by (e.g., 'Bank', 'IT', 'Energy')."},
					"min_price":      {Type: domain.TypeNumber, Description: "Minimum price."},
					"max_price":      {Type: domain.TypeNumber, Description: "Maximum price."},
					"min_pe":         {Type: domain.TypeNumber, Description: "Minimum PE ratio."},
					"max_pe":         {Type: domain.TypeNumber, Description: "Maximum PE ratio."},
					"min_market_cap": {Type: domain.TypeInteger, Description: "Minimum market cap."},
					"sort_by":        {Type: domain.TypeString, Description: "Field to sort by (market_cap, pe_ratio, current_price). Default is market_cap."},
				},
			},
		},
	}
}

// RealCatalog declares the tools available in real (brokerage-backed) mode.
// Built once at process start; callers must not mutate the result.
func RealCatalog() []domain.ToolDeclaration {
	decls := []domain.ToolDeclaration{
		{
			Name:        domain.ToolGetHoldings,
			Description: "Get the current user's stock holdings/portfolio.",
			Parameters:  &domain.Schema{Type: domain.TypeObject},
		},
		{
			Name:        domain.ToolPlaceOrder,
			Description: "Place a buy or sell order for a stock.",
			Parameters: &domain.Schema{
				Type: domain.TypeObject,
				Properties: map[string]*domain.Schema{
					"tradingsymbol": {Type: domain.TypeString, Description: "The stock symbol (e.g., RELIANCE, TCS)."},
					"exchange": {
						Type:        domain.TypeString,
						Description: "The exchange (NSE or BSE).",
						Enum:        []string{"NSE", "BSE"},
					},
					"transaction_type": {
						Type:        domain.TypeString,
						Description: "BUY or SELL.",
						Enum:        []string{"BUY", "SELL"},
					},
					"quantity": {Type: domain.TypeInteger, Description: "Number of shares to trade."},
					"product": {
						Type:        domain.TypeString,
						Description: "Product type (CNC for delivery, MIS for intraday).",
						Enum:        []string{"CNC", "MIS", "NRML"},
					},
					"order_type": {
						Type:        domain.TypeString,
						Description: "Order type (MARKET or LIMIT).",
						Enum:        []string{"MARKET", "LIMIT"},
					},
				},
				Required: []string{"tradingsymbol", "exchange", "transaction_type", "quantity"},
			},
		},
	}
	return append(decls, marketDeclarations()...)
}

// SimulatedCatalog declares the tools available in simulated mode. Same
// names as the real catalog, but place_order takes a limit price instead of
// a product type and only the symbol, side, and quantity are required.
func SimulatedCatalog() []domain.ToolDeclaration {
	decls := []domain.ToolDeclaration{
		{
			Name:        domain.ToolGetHoldings,
			Description: "Get the current user's SIMULATED stock holdings/portfolio.",
			Parameters:  &domain.Schema{Type: domain.TypeObject},
		},
		{
			Name:        domain.ToolPlaceOrder,
			Description: "Place a SIMULATED buy or sell order for a stock.",
			Parameters: &domain.Schema{
				Type: domain.TypeObject,
				Properties: map[string]*domain.Schema{
					"tradingsymbol": {Type: domain.TypeString, Description: "The stock symbol (e.g., RELIANCE, TCS, INFY)."},
					"transaction_type": {
						Type:        domain.TypeString,
						Description: "BUY or SELL",
						Enum:        []string{"BUY", "SELL"},
					},
					"quantity": {Type: domain.TypeInteger, Description: "Number of shares to buy/sell."},
					"exchange": {
						Type:        domain.TypeString,
						Description: "Exchange (NSE or BSE). Default to NSE.",
						Enum:        []string{"NSE", "BSE"},
					},
					"order_type": {
						Type:        domain.TypeString,
						Description: "Order type (MARKET or LIMIT). Default MARKET.",
						Enum:        []string{"MARKET", "LIMIT"},
					},
					"price": {Type: domain.TypeNumber, Description: "Limit price (required if order_type is LIMIT)."},
				},
				Required: []string{"tradingsymbol", "transaction_type", "quantity"},
			},
		},
	}
	return append(decls, marketDeclarations()...)
}

// Catalog returns the declarations for the given mode.
func Catalog(mode domain.Mode) []domain.ToolDeclaration {
	if mode == domain.ModeSimulated {
		return SimulatedCatalog()
	}
	return RealCatalog()
}
