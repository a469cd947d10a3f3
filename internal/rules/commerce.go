package rules

import (
	"os"

	"github.com/rivermist/shopflow/pkg/schema"
)

// commerceKeywords drives the default intent classifier for the commerce
// ruleset.
var commerceKeywords = map[string][]string{
	"order_status":   {"track", "tracking", "order status", "where is my order"},
	"refund_request": {"refund", "chargeback", "return", "money back"},
	"product_search": {"find", "search", "recommend", "looking for"},
	"address_change": {"change address", "update address", "shipping address"},
}

// CommerceClassifier returns the keyword classifier for commerce intents.
func CommerceClassifier() *KeywordClassifier {
	return NewKeywordClassifier(commerceKeywords)
}

// CommerceRules returns the default commerce ruleset. Refunds and address
// changes require human approval; status and search intents only pick up
// advisory instructions. The final rule narrows high-risk low-confidence
// refund requests to read-only tools.
func CommerceRules() []Rule {
	return []Rule{
		IntentMatchRule{
			Intent: "refund_request",
			Decision: schema.PolicyDecision{
				Allow:           true,
				RequireApproval: true,
				Notes:           []string{"Refunds require human approval before responding."},
				SystemInstructions: []string{
					"Do not promise refunds or reversals without approval.",
					"Collect order ID and reason only.",
				},
			},
		},
		IntentMatchRule{
			Intent: "address_change",
			Decision: schema.PolicyDecision{
				Allow:           true,
				RequireApproval: true,
				Notes:           []string{"Address changes require verification and approval."},
				SystemInstructions: []string{
					"Verify identity before confirming address updates.",
				},
			},
		},
		IntentMatchRule{
			Intent: "order_status",
			Decision: schema.PolicyDecision{
				Allow: true,
				Notes: []string{"Prefer internal order systems for status."},
				SystemInstructions: []string{
					"Use internal order status tools when available.",
				},
			},
		},
		IntentMatchRule{
			Intent: "product_search",
			Decision: schema.PolicyDecision{
				Allow: true,
				Notes: []string{"Recommend products with clear disclaimers on availability."},
				SystemInstructions: []string{
					"Avoid guaranteeing inventory or delivery dates.",
				},
			},
		},
		NewExprRule(
			`intent == "refund_request" && confidence < 0.5`,
			schema.PolicyDecision{
				Allow:        true,
				Notes:        []string{"Low-confidence refund intent: restricted to read-only tools."},
				AllowedTools: schema.ExactlyTools("order_status_tool", "refund_tool", "rag_tool"),
			},
		),
	}
}

// ForRuleset resolves a named ruleset: "commerce" enables the commerce
// classifier and rules, anything else yields an empty permissive
// configuration.
func ForRuleset(name string) (Classifier, []Rule) {
	if name == "commerce" {
		return CommerceClassifier(), CommerceRules()
	}
	return NewKeywordClassifier(nil), nil
}

// FromEnv selects the classifier and rules by the RULESET environment
// variable.
func FromEnv() (Classifier, []Rule, string) {
	ruleset := os.Getenv("RULESET")
	if ruleset == "" {
		ruleset = "default"
	}
	classifier, ruleList := ForRuleset(ruleset)
	return classifier, ruleList, ruleset
}
