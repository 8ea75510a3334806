package domain

import "fmt"

// Mode selects which execution context trading tools run against.
type Mode string

const (
	// ModeReal routes trading tools to the brokerage collaborator.
	ModeReal Mode = "real"
	// ModeSimulated routes trading tools to the virtual ledger.
	ModeSimulated Mode = "simulated"
)

// ParseMode normalizes a stored or client-supplied mode string.
// Unrecognized values default to real, matching the conversation default.
func ParseMode(s string) Mode {
	switch s {
	case "simulated", "simulation", "sim":
		return ModeSimulated
	default:
		return ModeReal
	}
}

// Tool is a closed identifier for one declared model capability.
// The set is fixed at compile time; dispatch switches over it exhaustively.
type Tool string

const (
	ToolGetHoldings     Tool = "get_holdings"
	ToolPlaceOrder      Tool = "place_order"
	ToolGetStockInfo    Tool = "get_stock_info"
	ToolGetMarketMovers Tool = "get_market_movers"
	ToolScreenStocks    Tool = "screen_stocks"
	ToolGetStockHistory Tool = "get_stock_history"
	ToolGetCompanyNews  Tool = "get_company_news"
	ToolQueryMarketData Tool = "query_market_data"
)

// ParseTool maps a model-supplied function name onto the closed tool set.
// Names outside the set return ErrUnknownTool; no execution is attempted.
func ParseTool(name string) (Tool, error) {
	switch t := Tool(name); t {
	case ToolGetHoldings, ToolPlaceOrder, ToolGetStockInfo, ToolGetMarketMovers,
		ToolScreenStocks, ToolGetStockHistory, ToolGetCompanyNews, ToolQueryMarketData:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

// ToolCall is a model-requested invocation of one declared capability.
// Args holds the raw argument mapping as emitted by the model; the
// normalizer rewrites it in place before execution.
type ToolCall struct {
	Tool Tool
	Args map[string]any
}

// ToolResult is the structured outcome of a tool execution. Failed
// executions carry a human-readable message and an empty payload; the
// executor never propagates collaborator errors past this boundary.
type ToolResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Response converts the result into the mapping fed back to the model as
// the function response body.
func (r ToolResult) Response() map[string]any {
	out := map[string]any{"success": r.Success}
	if r.Message != "" {
		out["message"] = r.Message
	}
	for k, v := range r.Payload {
		out[k] = v
	}
	return out
}

// Errorf builds a failed ToolResult from a format string.
func Errorf(format string, args ...any) ToolResult {
	return ToolResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Schema describes one parameter (or the parameter object itself) in the
// wire form the model API expects: upper-case type tags, optional enum
// constraints, nested properties for objects.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Schema type tags.
const (
	TypeObject  = "OBJECT"
	TypeString  = "STRING"
	TypeInteger = "INTEGER"
	TypeNumber  = "NUMBER"
)

// ToolDeclaration is the immutable catalog entry for one tool: its wire
// name, model-facing description, and parameter schema. Catalogs are built
// once at process start and never mutated.
type ToolDeclaration struct {
	Name        Tool    `json:"name"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters"`
}
