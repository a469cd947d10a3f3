package catalog

import (
	"sort"

	"github.com/rivermist/shopflow/pkg/schema"
)

// defaultAliases maps alternate intent labels onto their canonical catalog key.
func defaultAliases() map[string]string {
	return map[string]string{
		"order_status": "track_order",
	}
}

// Catalog is the static mapping from intent to its ordered step sequence,
// plus the intent aliases that normalize onto it. Built once at startup and
// read-only afterwards.
type Catalog struct {
	workflows map[string]schema.Workflow
	aliases   map[string]string
}

// Builtin returns the catalog of conversational commerce workflows.
func Builtin() *Catalog {
	return &Catalog{workflows: builtinWorkflows(), aliases: defaultAliases()}
}

// Normalize resolves intent aliases to their canonical catalog key.
func (c *Catalog) Normalize(intent string) string {
	if canonical, ok := c.aliases[intent]; ok {
		return canonical
	}
	return intent
}

// Sequence returns a copy of the step sequence for the (normalized) intent.
// Unknown intents yield an empty sequence.
func (c *Catalog) Sequence(intent string) schema.Workflow {
	wf, ok := c.workflows[c.Normalize(intent)]
	if !ok {
		return nil
	}
	out := make(schema.Workflow, len(wf))
	copy(out, wf)
	return out
}

// Intents returns the number of intents the catalog knows about.
func (c *Catalog) Intents() int {
	return len(c.workflows)
}

// IntentNames returns the canonical intent keys in sorted order.
func (c *Catalog) IntentNames() []string {
	names := make([]string, 0, len(c.workflows))
	for name := range c.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func builtinWorkflows() map[string]schema.Workflow {
	return map[string]schema.Workflow{
		"purchase": {
			{
				Name:          "PRODUCT_SEARCH",
				Description:   "Search catalog for matching products.",
				RequiredTools: []string{"catalog_search_tool"},
			},
			{
				Name:          "INVENTORY_CHECK",
				Description:   "Validate inventory for shortlisted SKUs.",
				RequiredTools: []string{"inventory_check_tool"},
			},
			{
				Name:          "PRICING",
				Description:   "Fetch pricing and promotions if applicable.",
				RequiredTools: []string{"pricing_tool", "promo_tool"},
			},
			{
				Name:        "RECOMMEND",
				Description: "Rank and recommend best-fit options.",
			},
			{
				Name:                 "CART",
				Description:          "Add selected item to cart and confirm.",
				RequiredTools:        []string{"cart_add_tool", "cart_view_tool"},
				RequiresConfirmation: true,
				InputFields:          []string{"user_id"},
			},
			{
				Name:                 "PAYMENT",
				Description:          "Run fraud checks and request payment method confirmation.",
				RequiredTools:        []string{"fraud_check_tool"},
				RequiresConfirmation: true,
				InputFields:          []string{"user_id"},
			},
			{
				Name:                 "CONFIRM",
				Description:          "Place the order and provide confirmation.",
				RequiredTools:        []string{"checkout_tool"},
				RequiresConfirmation: true,
				InputFields:          []string{"user_id", "payment_method", "address"},
			},
		},
		"product_search": {
			{
				Name:          "PRODUCT_SEARCH",
				Description:   "Search catalog for matching products.",
				RequiredTools: []string{"catalog_search_tool"},
			},
			{
				Name:        "RECOMMEND",
				Description: "Recommend top matches or alternatives.",
			},
		},
		"compare_products": {
			{
				Name:          "PRODUCT_SEARCH",
				Description:   "Search catalog for compared products.",
				RequiredTools: []string{"catalog_search_tool"},
			},
			{
				Name:        "RECOMMEND",
				Description: "Provide comparison and highlight differences.",
			},
		},
		"track_order": {
			{
				Name:          "ORDER_STATUS",
				Description:   "Fetch order status.",
				RequiredTools: []string{"order_status_tool"},
				InputFields:   []string{"order_id"},
			},
			{
				Name:          "LOGISTICS",
				Description:   "Check shipment tracking if available.",
				RequiredTools: []string{"logistics_tool"},
				InputFields:   []string{"tracking_id"},
			},
		},
		"return_request": {
			{
				Name:          "ORDER_STATUS",
				Description:   "Validate order eligibility for return.",
				RequiredTools: []string{"order_status_tool"},
				InputFields:   []string{"order_id"},
			},
			{
				Name:                 "RETURN_CREATE",
				Description:          "Create a return request with reason.",
				RequiredTools:        []string{"return_tool"},
				RequiresConfirmation: true,
				InputFields:          []string{"order_id", "reason"},
			},
			{
				Name:          "REFUND_STATUS",
				Description:   "Share refund status or next steps.",
				RequiredTools: []string{"refund_tool"},
			},
		},
		"refund_request": {
			{
				Name:          "ORDER_STATUS",
				Description:   "Validate order eligibility for refund.",
				RequiredTools: []string{"order_status_tool"},
				InputFields:   []string{"order_id"},
			},
			{
				Name:          "REFUND_STATUS",
				Description:   "Provide refund status and next steps.",
				RequiredTools: []string{"refund_tool"},
			},
		},
		"reorder": {
			{
				Name:          "ORDER_STATUS",
				Description:   "Retrieve past order details.",
				RequiredTools: []string{"order_status_tool"},
				InputFields:   []string{"order_id"},
			},
			{
				Name:                 "REORDER",
				Description:          "Recreate the order in cart.",
				RequiredTools:        []string{"reorder_tool", "cart_view_tool"},
				RequiresConfirmation: true,
				InputFields:          []string{"user_id"},
			},
		},
		"support_ticket": {
			{
				Name:                 "SUPPORT",
				Description:          "Create or update a support ticket.",
				RequiredTools:        []string{"support_tool"},
				RequiresConfirmation: true,
				InputFields:          []string{"user_id", "subject", "description"},
			},
		},
	}
}
