package catalog

import "strings"

// stepHint associates a keyword with the catalog step it suggests.
type stepHint struct {
	keyword string
	step    string
}

// stepHints is the ordered association of plan-phrase keywords to step names.
// Order matters: matching is first-hit-wins over a case-insensitive substring
// check, so more specific keywords must precede broader ones.
var stepHints = []stepHint{
	{"search", "PRODUCT_SEARCH"},
	{"find", "PRODUCT_SEARCH"},
	{"inventory", "INVENTORY_CHECK"},
	{"stock", "INVENTORY_CHECK"},
	{"price", "PRICING"},
	{"offer", "PRICING"},
	{"discount", "PRICING"},
	{"recommend", "RECOMMEND"},
	{"cart", "CART"},
	{"checkout", "CONFIRM"},
	{"payment", "PAYMENT"},
	{"order status", "ORDER_STATUS"},
	{"track", "LOGISTICS"},
	{"return", "RETURN_CREATE"},
	{"refund", "REFUND_STATUS"},
	{"support", "SUPPORT"},
	{"ticket", "SUPPORT"},
}

// matchStepName maps a free-text plan phrase to a catalog step name, or ""
// when no hint keyword occurs in the phrase.
func matchStepName(phrase string) string {
	lowered := strings.ToLower(phrase)
	for _, h := range stepHints {
		if strings.Contains(lowered, h.keyword) {
			return h.step
		}
	}
	return ""
}
