package memory

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/rivermist/shopflow/pkg/schema"
)

// Tool outputs are JSON documents; jq queries pull the fields that feed the
// long-term memory sections. Queries are compiled once at package init.
var (
	orderIDQuery  = mustCompile(`.order_id // empty`)
	ticketIDQuery = mustCompile(`.ticket_id // empty`)
)

var cartTools = map[string]bool{
	"cart_add_tool":    true,
	"cart_remove_tool": true,
	"cart_view_tool":   true,
}

func mustCompile(query string) *gojq.Code {
	q, err := gojq.Parse(query)
	if err != nil {
		panic(fmt.Sprintf("parse jq query %q: %v", query, err))
	}
	code, err := gojq.Compile(q)
	if err != nil {
		panic(fmt.Sprintf("compile jq query %q: %v", query, err))
	}
	return code
}

// absorbToolOutput folds a recognized tool payload into long-term memory:
// cart tools replace the active cart, checkout and order-status payloads
// with an order ID append to the order history, and support tickets become
// episodic notes. Non-JSON or non-object outputs are ignored.
// Caller holds s.mu.
func (s *Store) absorbToolOutput(result schema.ToolResult) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Output), &payload); err != nil {
		return
	}

	if cartTools[result.Tool] {
		s.state.ActiveCart = payload
	}
	if result.Tool == "checkout_tool" || result.Tool == "order_status_tool" {
		if _, ok := queryString(orderIDQuery, payload); ok {
			s.state.OrderHistory = append(s.state.OrderHistory, payload)
		}
	}
	if result.Tool == "support_tool" {
		if ticket, ok := queryString(ticketIDQuery, payload); ok {
			s.state.EpisodicNotes = append(s.state.EpisodicNotes, fmt.Sprintf("Opened ticket %s.", ticket))
		}
	}
}

// queryString runs a compiled jq query and returns its first output as a
// string, or false when the query yields nothing.
func queryString(code *gojq.Code, payload map[string]any) (string, bool) {
	iter := code.Run(payload)
	v, ok := iter.Next()
	if !ok {
		return "", false
	}
	if _, isErr := v.(error); isErr {
		return "", false
	}
	return fmt.Sprintf("%v", v), true
}
