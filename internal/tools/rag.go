package tools

import (
	"context"
	"sort"
	"strings"
)

// RagToolName is the retrieval tool the runner always permits.
const RagToolName = "rag_tool"

// Document is one retrievable knowledge snippet.
type Document struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// defaultDocuments covers store policy questions local runs hit most often.
var defaultDocuments = []Document{
	{Title: "Return policy", Body: "Items may be returned within 30 days of delivery in original packaging. Refunds are issued to the original payment method within 5-7 business days."},
	{Title: "Shipping", Body: "Standard shipping takes 3-5 business days. Orders over 1000 INR ship free. Tracking IDs are emailed once the label is created."},
	{Title: "Promotions", Body: "Promo code SAVE10 grants 10% off carts of 1000 INR or more. One code per order."},
	{Title: "Warranty", Body: "Audio products carry a 12-month manufacturer warranty covering defects, not accidental damage."},
	{Title: "Support", Body: "Support tickets receive a first response within 24 hours. Keep the ticket ID for follow-ups."},
}

// RagTool retrieves document snippets by keyword overlap with the query.
type RagTool struct {
	docs []Document
	top  int
}

// NewRagTool creates a retrieval tool over the given documents; nil docs use
// the built-in policy set.
func NewRagTool(docs []Document, top int) *RagTool {
	if docs == nil {
		docs = defaultDocuments
	}
	if top <= 0 {
		top = 2
	}
	return &RagTool{docs: docs, top: top}
}

func (t *RagTool) Name() string        { return RagToolName }
func (t *RagTool) Description() string { return "Retrieve policy and product documentation snippets." }

func (t *RagTool) Call(_ context.Context, args map[string]string) (string, error) {
	query := strings.ToLower(args["query"])
	words := strings.Fields(query)

	type hit struct {
		score int
		doc   Document
	}
	var hits []hit
	for _, doc := range t.docs {
		text := strings.ToLower(doc.Title + " " + doc.Body)
		score := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{score: score, doc: doc})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > t.top {
		hits = hits[:t.top]
	}

	snippets := make([]Document, 0, len(hits))
	for _, h := range hits {
		snippets = append(snippets, h.doc)
	}
	return asJSON(map[string]any{"query": args["query"], "snippets": snippets}), nil
}
