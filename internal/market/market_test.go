package market

import (
	"math"
	"testing"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare symbol gets NSE suffix", "reliance", "RELIANCE.NS"},
		{"already suffixed", "TCS.NS", "TCS.NS"},
		{"BSE suffix kept", "infy.bo", "INFY.BO"},
		{"whitespace trimmed", "  sbin  ", "SBIN.NS"},
		{"empty stays empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeSymbol(tt.in); got != tt.want {
				t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRankMovers(t *testing.T) {
	series := map[string][]float64{
		"UP":    {100, 110}, // +10%
		"DOWN":  {100, 95},  // -5%
		"FLAT":  {50, 50},
		"SHORT": {42}, // dropped, one close
	}

	entries := rankMovers(series)
	if len(entries) != 3 {
		t.Fatalf("rankMovers returned %d entries, want 3", len(entries))
	}
	if entries[0].Symbol != "UP" || entries[2].Symbol != "DOWN" {
		t.Errorf("unexpected order: %q first, %q last", entries[0].Symbol, entries[2].Symbol)
	}
	if math.Abs(entries[0].ChangePct-10) > 1e-9 {
		t.Errorf("UP change = %v, want 10", entries[0].ChangePct)
	}
	if entries[0].Price != 110 {
		t.Errorf("UP price = %v, want 110", entries[0].Price)
	}
}

func TestSplitMovers(t *testing.T) {
	series := map[string][]float64{
		"A": {100, 108},
		"B": {100, 104},
		"C": {100, 101},
		"D": {100, 99},
		"E": {100, 92},
	}
	movers := splitMovers(rankMovers(series), 2)

	if len(movers.TopGainers) != 2 || len(movers.TopLosers) != 2 {
		t.Fatalf("got %d gainers, %d losers, want 2 each", len(movers.TopGainers), len(movers.TopLosers))
	}
	if movers.TopGainers[0].Symbol != "A" || movers.TopGainers[1].Symbol != "B" {
		t.Errorf("gainers = %v", movers.TopGainers)
	}
	if movers.TopLosers[0].Symbol != "E" || movers.TopLosers[1].Symbol != "D" {
		t.Errorf("losers = %v", movers.TopLosers)
	}
}

func TestSplitMoversSmallUniverse(t *testing.T) {
	movers := splitMovers(rankMovers(map[string][]float64{"ONLY": {100, 103}}), 5)
	if len(movers.TopGainers) != 1 || len(movers.TopLosers) != 1 {
		t.Fatalf("got %d gainers, %d losers, want 1 each", len(movers.TopGainers), len(movers.TopLosers))
	}
}

func TestScreenBySMA(t *testing.T) {
	flat := func(n int, v float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = v
		}
		return out
	}
	above := append(flat(smaWindow, 100), 120) // last close above 50-day average
	below := append(flat(smaWindow, 100), 80)
	series := map[string][]float64{
		"BULL":  above,
		"BEAR":  below,
		"SHORT": flat(10, 100), // skipped, under window
	}

	bulls := screenBySMA(series, smaWindow, true)
	if len(bulls) != 1 || bulls[0].Symbol != "BULL" {
		t.Fatalf("bullish screen = %v, want [BULL]", bulls)
	}
	if bulls[0].Price != 120 {
		t.Errorf("BULL price = %v, want 120", bulls[0].Price)
	}

	bears := screenBySMA(series, smaWindow, false)
	if len(bears) != 1 || bears[0].Symbol != "BEAR" {
		t.Fatalf("bearish screen = %v, want [BEAR]", bears)
	}
}

func TestSMAUsesTrailingWindow(t *testing.T) {
	closes := []float64{1000, 1000, 10, 20, 30}
	if got := sma(closes, 3); math.Abs(got-20) > 1e-9 {
		t.Errorf("sma = %v, want 20", got)
	}
}

func TestHistoryPeriodSpecs(t *testing.T) {
	for period, spec := range periodSpecs {
		if spec.rangeSpec == "" || spec.interval == "" {
			t.Errorf("period %q has incomplete spec %+v", period, spec)
		}
	}
	if _, ok := periodSpecs["1mo"]; !ok {
		t.Error("default period 1mo missing from specs")
	}
}
