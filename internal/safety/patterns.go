package safety

import (
	"regexp"
	"strings"
)

// Pattern-scanner sub-categories.
const (
	CategoryWeapons     = "weapons_explosives"
	CategorySelfHarm    = "self_harm"
	CategoryIllegal     = "illegal_activities"
	CategoryHate        = "hate_speech"
	CategoryPrivacy     = "privacy_violations"
	CategoryFraud       = "financial_fraud"
	CategorySubstances  = "dangerous_substances"
	CategoryInstruction = "instruction"
)

// harmfulInstructionPatterns match instruction-seeking phrasing combined
// with a harmful verb. Scanned in order; first match wins.
var harmfulInstructionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(how to|ways to|methods of|instructions for)\s+(kill|harm|hurt|attack|fight|assault)`),
	regexp.MustCompile(`\b(step by step|detailed guide|tutorial)\s+(for|on)\s+(violence|illegal|harmful)`),
	regexp.MustCompile(`\b(make|create|build)\s+(weapon|bomb|explosive|gun)`),
	regexp.MustCompile(`\b(how to|ways to|methods of)\s+(make|create|build)\s+(a\s+)?(bomb|explosive|dynamite|tnt|gunpowder|gun|weapon)`),
	regexp.MustCompile(`\b(bomb|explosive|weapon)\s+(making|creation|building)`),
	regexp.MustCompile(`\b(recipe|formula|instructions)\s+(for|to make)\s+(bomb|explosive|weapon)`),
	regexp.MustCompile(`\b(step by step|detailed)\s+(bomb|explosive|weapon)`),
	regexp.MustCompile(`\b(how to|ways to|methods of)\s+(commit suicide|kill myself|end my life|harm myself)`),
	regexp.MustCompile(`\b(instructions|step by step)\s+(for|to)\s+(suicide|self-harm)`),
	regexp.MustCompile(`\b(how to|ways to|methods of)\s+(hack|steal|cheat|rob|burglarize|vandalize|break into)`),
	regexp.MustCompile(`\b(how to|ways to)\s+(get away with|avoid detection)`),
	regexp.MustCompile(`\b(instructions|step by step)\s+(for|to)\s+(crime|illegal)`),
	regexp.MustCompile(`\b(how to|ways to)\s+(discriminate|spread hate|bully|harass)`),
	regexp.MustCompile(`\b(instructions|step by step)\s+(for|to)\s+(hate speech|discrimination)`),
	regexp.MustCompile(`\b(how to|ways to)\s+(stalk|spy|invade privacy|hack into|track someone|monitor someone)`),
	regexp.MustCompile(`\b(instructions|step by step)\s+(for|to)\s+(stalking|spying)`),
	regexp.MustCompile(`\b(how to|ways to)\s+(scam|defraud|steal money|launder money|forge|counterfeit)`),
	regexp.MustCompile(`\b(instructions|step by step)\s+(for|to)\s+(fraud|scam)`),
	regexp.MustCompile(`\b(how to|ways to)\s+(make|create|synthesize)\s+(drugs|poison|chemicals)`),
	regexp.MustCompile(`\b(recipe|formula|instructions)\s+(for|to make)\s+(drugs|poison)`),
	regexp.MustCompile(`\b(step by step)\s+(drug|poison|chemical)`),
	regexp.MustCompile(`\b(how to|ways to)\s+(spread misinformation|create fake news|manipulate information)`),
	regexp.MustCompile(`\b(commit|attempt)\s+(suicide|murder|crime)`),
	regexp.MustCompile(`\b(promote|encourage|advocate)\s+(violence|hate|discrimination)`),
	regexp.MustCompile(`\b(bypass|circumvent)\s+(security|safety|protection)`),
}

// patternCategory infers the sub-category from keyword membership of the
// matched pattern text, in fixed priority order:
// weapons > self-harm > illegal > hate > privacy > fraud > substances > generic.
func patternCategory(pattern string) (reason, category string) {
	switch {
	case containsAny(pattern, "bomb", "explosive", "weapon", "gun"):
		return "Dangerous weapons/explosives instruction", CategoryWeapons
	case containsAny(pattern, "suicide", "self-harm", "kill myself"):
		return "Self-harm instruction", CategorySelfHarm
	case containsAny(pattern, "hack", "steal", "crime", "illegal"):
		return "Illegal activity instruction", CategoryIllegal
	case containsAny(pattern, "discriminate", "hate", "bully", "harass"):
		return "Hate speech/harassment instruction", CategoryHate
	case containsAny(pattern, "stalk", "spy", "privacy"):
		return "Privacy violation instruction", CategoryPrivacy
	case containsAny(pattern, "scam", "fraud", "steal money"):
		return "Financial fraud instruction", CategoryFraud
	case containsAny(pattern, "drugs", "poison", "chemicals"):
		return "Dangerous substance instruction", CategorySubstances
	default:
		return "Harmful instruction", CategoryInstruction
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// CheckPatterns runs the hard-block scanner over lowercased text. On a hit
// it returns the human-readable reason and the inferred sub-category.
func CheckPatterns(text string) (blocked bool, reason, category string) {
	textLower := strings.ToLower(text)
	for _, re := range harmfulInstructionPatterns {
		if re.MatchString(textLower) {
			reason, category = patternCategory(re.String())
			return true, reason, category
		}
	}
	return false, "", ""
}
