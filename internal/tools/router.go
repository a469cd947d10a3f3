package tools

import (
	"sort"
	"strings"
)

// Spec describes a routable tool: its match tags, relative cost, and whether
// it is always offered regardless of score.
type Spec struct {
	Name   string
	Tags   []string
	Cost   int
	Always bool
}

// Router selects the tools relevant to a task by tag scoring under a size
// and cost budget.
type Router struct {
	specs    []Spec
	maxTools int
	maxCost  int
	minScore float64
}

// NewRouter creates a router over the given specs.
func NewRouter(specs []Spec, maxTools, maxCost int, minScore float64) *Router {
	return &Router{specs: specs, maxTools: maxTools, maxCost: maxCost, minScore: minScore}
}

// Select scores each spec by counting its tags appearing in the lowercased
// task and context text (always-include specs get a one point bonus and
// bypass the score floor), sorts by score then cheaper cost, and takes specs
// until the tool or cost budget runs out. Returns tool names in selection
// order.
func (r *Router) Select(task, context string) []string {
	text := strings.ToLower(task + " " + context)

	type scored struct {
		score float64
		spec  Spec
	}
	var candidates []scored
	for _, spec := range r.specs {
		score := 0.0
		for _, tag := range spec.Tags {
			if strings.Contains(text, tag) {
				score++
			}
		}
		if spec.Always {
			score++
		}
		if score >= r.minScore || spec.Always {
			candidates = append(candidates, scored{score: score, spec: spec})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].spec.Cost < candidates[j].spec.Cost
	})

	var selected []string
	totalCost := 0
	for _, c := range candidates {
		if len(selected) >= r.maxTools {
			break
		}
		if totalCost+c.spec.Cost > r.maxCost {
			continue
		}
		selected = append(selected, c.spec.Name)
		totalCost += c.spec.Cost
	}
	return selected
}

// DefaultSpecs returns the routing table for the commerce tool set.
func DefaultSpecs() []Spec {
	return []Spec{
		{Name: RagToolName, Tags: []string{"rag", "docs", "context", "policy", "spec"}, Cost: 3},
		{Name: "catalog_search_tool", Tags: []string{"buy", "search", "catalog", "find", "product"}, Cost: 1, Always: true},
		{Name: "inventory_check_tool", Tags: []string{"inventory", "stock", "availability"}, Cost: 1},
		{Name: "pricing_tool", Tags: []string{"price", "cost", "discount"}, Cost: 1},
		{Name: "promo_tool", Tags: []string{"promo", "coupon", "offer"}, Cost: 1},
		{Name: "cart_add_tool", Tags: []string{"cart", "add", "buy"}, Cost: 2},
		{Name: "cart_remove_tool", Tags: []string{"remove", "cart"}, Cost: 2},
		{Name: "cart_view_tool", Tags: []string{"cart", "view"}, Cost: 2},
		{Name: "fraud_check_tool", Tags: []string{"fraud", "risk", "verify"}, Cost: 2},
		{Name: "checkout_tool", Tags: []string{"checkout", "pay", "order"}, Cost: 3},
		{Name: "order_status_tool", Tags: []string{"track", "status", "order"}, Cost: 2},
		{Name: "logistics_tool", Tags: []string{"track", "shipment", "delivery"}, Cost: 2},
		{Name: "return_tool", Tags: []string{"return", "refund"}, Cost: 2},
		{Name: "refund_tool", Tags: []string{"refund", "status"}, Cost: 2},
		{Name: "reorder_tool", Tags: []string{"reorder", "again", "repeat"}, Cost: 2},
		{Name: "support_tool", Tags: []string{"support", "issue", "ticket"}, Cost: 2},
	}
}
