package market

// nifty50 is the fixed symbol universe used for movers and screening.
var nifty50 = []string{
	"ADANIENT", "ADANIPORTS", "APOLLOHOSP", "ASIANPAINT", "AXISBANK",
	"BAJAJ-AUTO", "BAJFINANCE", "BAJAJFINSV", "BEL", "BPCL",
	"BHARTIARTL", "BRITANNIA", "CIPLA", "COALINDIA", "DIVISLAB",
	"DRREDDY", "EICHERMOT", "GRASIM", "HCLTECH", "HDFCBANK",
	"HDFCLIFE", "HEROMOTOCO", "HINDALCO", "HINDUNILVR", "ICICIBANK",
	"ITC", "INDUSINDBK", "INFY", "JSWSTEEL", "KOTAKBANK",
	"LT", "M&M", "MARUTI", "NTPC", "NESTLEIND",
	"ONGC", "POWERGRID", "RELIANCE", "SBILIFE", "SBIN",
	"SUNPHARMA", "TCS", "TATACONSUM", "TATAMOTORS", "TATASTEEL",
	"TECHM", "TITAN", "ULTRACEMCO", "WIPRO",
}
