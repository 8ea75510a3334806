package safety

import (
	"context"
	"log/slog"
	"math"
	"strings"
)

// Risk tiers.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Synthetic categories produced by the semantic stage.
const (
	CategoryNeutral    = "neutral"
	CategoryIntent     = "intent"
	CategorySuspicious = "suspicious"
)

// Embedder is the optional sentence-embedding backend for the semantic
// stage. When construction fails or no backend is configured the classifier
// degrades to rules-only; it never fails a request over a missing embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Classifier maps free text to (category, confidence, risk tier). It holds
// only read-only state after construction and is safe for concurrent use.
type Classifier struct {
	rules    *Rules
	embedder Embedder
	logger   *slog.Logger

	// Reference sets, embedded once at startup.
	harmfulVecs [][]float32
	legitVecs   [][]float32
}

// NewClassifier builds a classifier from the rule set. The embedder may be
// nil; if pre-embedding the reference sets fails, the semantic stage is
// disabled and the classifier runs rules-only.
func NewClassifier(rules *Rules, embedder Embedder, logger *slog.Logger) *Classifier {
	c := &Classifier{
		rules:  rules,
		logger: logger,
	}

	if embedder == nil {
		logger.Warn("no embedding backend configured, semantic analysis disabled")
		return c
	}

	ctx := context.Background()
	harmful, err := embedder.EmbedBatch(ctx, rules.HarmfulIntents)
	if err != nil {
		logger.Error("failed to embed harmful intent reference set, semantic analysis disabled", "error", err)
		return c
	}
	legit, err := embedder.EmbedBatch(ctx, rules.LegitimateTopics)
	if err != nil {
		logger.Error("failed to embed legitimate topic reference set, semantic analysis disabled", "error", err)
		return c
	}

	c.embedder = embedder
	c.harmfulVecs = harmful
	c.legitVecs = legit
	return c
}

// SemanticEnabled reports whether the embedding stage is active.
func (c *Classifier) SemanticEnabled() bool { return c.embedder != nil }

// Classify runs the staged analysis: literal substring rules in category
// declaration order, then (when available) semantic similarity against the
// pre-embedded reference sets, then the neutral default. First match wins.
func (c *Classifier) Classify(ctx context.Context, text string) (category string, confidence float64, riskLevel string) {
	textLower := strings.ToLower(text)

	for _, cat := range c.rules.SafetyCategories {
		for _, pattern := range cat.BlockedPatterns {
			if strings.Contains(textLower, pattern) {
				return cat.Name, 0.95, RiskHigh
			}
		}
		for _, pattern := range cat.DiscussionPatterns {
			if strings.Contains(textLower, pattern) {
				return cat.Name, 0.3, RiskLow
			}
		}
	}

	if c.embedder != nil {
		if cat, conf, risk, ok := c.classifySemantic(ctx, text); ok {
			return cat, conf, risk
		}
	}

	return CategoryNeutral, 0.0, RiskLow
}

// classifySemantic embeds the text and compares it against the harmful and
// legitimate reference sets. A false ok means no semantic signal (or a
// backend failure, which degrades silently to the neutral default).
func (c *Classifier) classifySemantic(ctx context.Context, text string) (string, float64, string, bool) {
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		c.logger.Error("semantic analysis failed", "error", err)
		return "", 0, "", false
	}

	maxHarmful := maxSimilarity(vec, c.harmfulVecs)
	maxLegit := maxSimilarity(vec, c.legitVecs)

	switch {
	case maxHarmful > c.rules.IntentThreshold:
		return CategoryIntent, maxHarmful, RiskHigh, true
	case maxLegit > 0.6:
		return CategoryNeutral, maxLegit, RiskLow, true
	case maxHarmful > 0.5:
		return CategorySuspicious, maxHarmful, RiskMedium, true
	}
	return "", 0, "", false
}

func maxSimilarity(vec []float32, refs [][]float32) float64 {
	max := 0.0
	for _, ref := range refs {
		if sim := cosineSimilarity(vec, ref); sim > max {
			max = sim
		}
	}
	return max
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
