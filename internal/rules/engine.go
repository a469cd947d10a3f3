package rules

import (
	"sort"
	"strings"

	"github.com/rivermist/shopflow/pkg/schema"
)

// Intent is a classification label for a user request, with the confidence
// of the classifier and any entities extracted alongside it.
type Intent struct {
	Name       string            `json:"name"`
	Confidence float64           `json:"confidence"`
	Tags       []string          `json:"tags,omitempty"`
	Entities   map[string]string `json:"entities,omitempty"`
}

// Context carries everything a rule may inspect when deciding.
type Context struct {
	Task     string            `json:"task"`
	Intent   Intent            `json:"intent"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Rule contributes a partial policy decision for a matching context.
// A nil return means the rule does not apply.
type Rule interface {
	Apply(ctx Context) *schema.PolicyDecision
}

// Classifier assigns an intent to a task.
type Classifier interface {
	Classify(task string) Intent
}

// Engine evaluates an ordered rule list and merges their partial decisions.
type Engine struct {
	rules []Rule
}

// NewEngine creates an Engine over the given rules. Rule order determines
// merge order for notes and instructions.
func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// Evaluate folds every applicable rule's decision into a single merged
// PolicyDecision, starting from the neutral decision.
func (e *Engine) Evaluate(ctx Context) schema.PolicyDecision {
	decision := schema.NewPolicyDecision()
	for _, rule := range e.rules {
		outcome := rule.Apply(ctx)
		if outcome == nil {
			continue
		}
		decision = decision.Merge(*outcome)
	}
	return decision
}

// intentKeywords associates an intent name with its keyword list.
type intentKeywords struct {
	name  string
	words []string
}

// KeywordClassifier scores intents by counting keyword hits in the task text.
// Intents are kept in a fixed order so tie-breaking is stable across calls.
type KeywordClassifier struct {
	intents []intentKeywords
}

// NewKeywordClassifier creates a classifier from an intent-to-keywords map.
// Intents are ordered by name at construction.
func NewKeywordClassifier(keywords map[string][]string) *KeywordClassifier {
	names := make([]string, 0, len(keywords))
	for name := range keywords {
		names = append(names, name)
	}
	sort.Strings(names)
	intents := make([]intentKeywords, 0, len(names))
	for _, name := range names {
		intents = append(intents, intentKeywords{name: name, words: keywords[name]})
	}
	return &KeywordClassifier{intents: intents}
}

// Classify picks the intent with the most keyword hits; ties keep the first
// intent in name order, zero hits yield the "general" intent.
func (c *KeywordClassifier) Classify(task string) Intent {
	text := strings.ToLower(task)
	best := "general"
	bestScore := 0
	for _, in := range c.intents {
		score := 0
		for _, w := range in.words {
			if strings.Contains(text, w) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = in.name
		}
	}
	confidence := 0.0
	if bestScore > 0 {
		confidence = float64(bestScore) / 3
		if confidence > 1 {
			confidence = 1
		}
	}
	return Intent{Name: best, Confidence: confidence}
}

// IntentMatchRule applies its decision when the context's intent name
// equals the configured intent.
type IntentMatchRule struct {
	Intent   string
	Decision schema.PolicyDecision
}

func (r IntentMatchRule) Apply(ctx Context) *schema.PolicyDecision {
	if ctx.Intent.Name != r.Intent {
		return nil
	}
	d := r.Decision
	return &d
}
