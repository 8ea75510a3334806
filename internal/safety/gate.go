package safety

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// Decision actions.
const (
	ActionAllow = "allow"
	ActionFlag  = "flag"
	ActionBlock = "block"
)

// RiskAssessment is the full classification of one input. Produced fresh
// per input and logged for audit when the final risk is not low; never
// persisted as a standalone entity.
type RiskAssessment struct {
	Text            string    `json:"text"`
	Category        string    `json:"category"`
	Confidence      float64   `json:"confidence"`
	RiskLevel       string    `json:"risk_level"`
	ShouldBlock     bool      `json:"should_block"`
	Reason          string    `json:"reason"`
	PatternCategory string    `json:"pattern_category"`
	Action          string    `json:"action"`
	FinalRisk       string    `json:"final_risk"`
	Timestamp       time.Time `json:"timestamp"`
}

// Gate combines the classifier with the hard-block pattern scanner and the
// policy thresholds. It is constructed once at the dependency-injection
// root and holds no mutable state across calls.
type Gate struct {
	rules      *Rules
	classifier *Classifier
	logger     *slog.Logger
}

// NewGate wires a gate around an already-constructed classifier.
func NewGate(rules *Rules, classifier *Classifier, logger *slog.Logger) *Gate {
	return &Gate{
		rules:      rules,
		classifier: classifier,
		logger:     logger,
	}
}

// Assess produces the combined risk assessment for one input.
// Neutral is an absorbing allow state: whatever the pattern scanner says,
// a neutral classification always allows.
func (g *Gate) Assess(ctx context.Context, text string) RiskAssessment {
	category, confidence, riskLevel := g.classifier.Classify(ctx, text)
	shouldBlock, reason, patternCategory := CheckPatterns(text)

	ra := RiskAssessment{
		Text:            text,
		Category:        category,
		Confidence:      confidence,
		RiskLevel:       riskLevel,
		ShouldBlock:     shouldBlock,
		Reason:          reason,
		PatternCategory: patternCategory,
		Timestamp:       time.Now(),
	}

	if category == CategoryNeutral {
		ra.Action = ActionAllow
		ra.FinalRisk = RiskLow
		return ra
	}

	switch {
	case shouldBlock:
		ra.Action = ActionBlock
		ra.FinalRisk = RiskHigh
	case confidence > g.rules.ContextThreshold:
		ra.Action = ActionBlock
		ra.FinalRisk = RiskHigh
	case confidence > 0.6:
		ra.Action = ActionFlag
		ra.FinalRisk = RiskMedium
	default:
		ra.Action = ActionAllow
		ra.FinalRisk = RiskLow
	}
	return ra
}

// Decide applies the gate to a query and returns whether it may proceed,
// the user-facing message, and the underlying assessment.
func (g *Gate) Decide(ctx context.Context, query string) (bool, string, RiskAssessment) {
	if strings.TrimSpace(query) == "" {
		return true, "Please provide a query.", RiskAssessment{Action: ActionAllow, FinalRisk: RiskLow}
	}

	// Character count, not bytes: multi-byte input gets the full limit.
	if utf8.RuneCountInString(query) > g.rules.Performance.MaxTextLength {
		return false, "Query too long. Please keep it under 10,000 characters.",
			RiskAssessment{Action: ActionBlock, FinalRisk: RiskLow}
	}

	ra := g.Assess(ctx, query)

	if ra.FinalRisk != RiskLow {
		g.logger.Info("safety filter risk",
			"category", ra.Category,
			"confidence", ra.Confidence,
			"action", ra.Action,
			"final_risk", ra.FinalRisk,
			"reason", ra.Reason,
		)
	}

	if ra.Category == CategoryNeutral {
		return true, "Looks good.", ra
	}

	switch ra.Action {
	case ActionBlock:
		if ra.Category == CategoryIntent {
			return false, "Sorry, I can't help with that. If you need help, please reach out to someone you trust.", ra
		}
		return false, fmt.Sprintf("This query looks unsafe. %s", ra.Reason), ra
	case ActionFlag:
		return true, "This query has been flagged for review but will be processed.", ra
	default:
		return true, "Looks good.", ra
	}
}

// FilterResponse screens model output against the restricted output list.
func (g *Gate) FilterResponse(response string) (bool, string) {
	responseLower := strings.ToLower(response)
	for _, pattern := range g.rules.RestrictedOutputs {
		if strings.Contains(responseLower, strings.ToLower(pattern)) {
			g.logger.Warn("response blocked due to restricted pattern", "pattern", pattern)
			return false, "Response blocked: Contains restricted content"
		}
	}
	return true, response
}
