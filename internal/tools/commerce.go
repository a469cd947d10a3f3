package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Product is one catalog entry. Prices are integer minor units.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    int     `json:"price"`
	Rating   float64 `json:"rating"`
	Stock    int     `json:"stock"`
	Category string  `json:"category"`
}

type cartItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// CommerceStore is the in-memory backing store for the local commerce tools:
// a fixed catalog plus per-session carts, orders, shipments, and tickets.
type CommerceStore struct {
	mu        sync.Mutex
	catalog   []Product
	carts     map[string][]cartItem
	orders    map[string]map[string]any
	shipments map[string]map[string]any
	tickets   map[string]map[string]any
	nextID    int
}

// NewCommerceStore creates a store seeded with the demo catalog.
func NewCommerceStore() *CommerceStore {
	return &CommerceStore{
		catalog: []Product{
			{ID: "sku_1001", Name: "EchoLite Bluetooth Speaker", Price: 3499, Rating: 4.4, Stock: 12, Category: "audio"},
			{ID: "sku_1002", Name: "Nimbus Wireless Headset", Price: 4899, Rating: 4.6, Stock: 5, Category: "audio"},
			{ID: "sku_1003", Name: "VoltAir Noise-Canceling Earbuds", Price: 2999, Rating: 4.2, Stock: 0, Category: "audio"},
			{ID: "sku_2001", Name: "Drift Car Phone Mount", Price: 899, Rating: 4.1, Stock: 27, Category: "auto"},
			{ID: "sku_3001", Name: "Orion Smartwatch Active", Price: 5499, Rating: 4.5, Stock: 9, Category: "wearables"},
		},
		carts:     make(map[string][]cartItem),
		orders:    make(map[string]map[string]any),
		shipments: make(map[string]map[string]any),
		tickets:   make(map[string]map[string]any),
	}
}

func (s *CommerceStore) findProduct(sku string) *Product {
	for i := range s.catalog {
		if s.catalog[i].ID == sku {
			return &s.catalog[i]
		}
	}
	return nil
}

func (s *CommerceStore) nextRef(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s_%d", prefix, s.nextID)
}

func asJSON(payload any) string {
	raw, _ := json.Marshal(payload)
	return string(raw)
}

// CatalogSearch filters by name or category prefix, caps price, sorts by
// rating, and limits the result count.
func (s *CommerceStore) CatalogSearch(query string, limit int, maxPrice float64, category string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var results []Product
	for _, p := range s.catalog {
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.HasPrefix(strings.ToLower(p.Category), q) {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		if maxPrice > 0 && float64(p.Price) > maxPrice {
			continue
		}
		results = append(results, p)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Rating > results[j].Rating })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []Product{}
	}
	return asJSON(map[string]any{"count": len(results), "items": results})
}

func (s *CommerceStore) InventoryCheck(sku string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.findProduct(sku)
	if p == nil {
		return asJSON(map[string]any{"sku": sku, "available": false, "stock": 0})
	}
	return asJSON(map[string]any{"sku": sku, "available": p.Stock > 0, "stock": p.Stock})
}

// PricingLookup applies a 10% discount for users listed in COMMERCE_VIP_USERS.
func (s *CommerceStore) PricingLookup(sku, userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.findProduct(sku)
	if p == nil {
		return asJSON(map[string]any{
			"sku": sku, "base_price": nil, "final_price": nil,
			"currency": "INR", "discount_pct": 0,
		})
	}
	discount := 0.0
	if userID != "" {
		for _, vip := range strings.Split(os.Getenv("COMMERCE_VIP_USERS"), ",") {
			if strings.TrimSpace(vip) == userID {
				discount = 0.1
				break
			}
		}
	}
	return asJSON(map[string]any{
		"sku": sku, "base_price": p.Price,
		"final_price":  int(float64(p.Price) * (1 - discount)),
		"currency":     "INR",
		"discount_pct": int(discount * 100),
	})
}

func (s *CommerceStore) PromoCheck(cartTotal float64, code string) string {
	discount := 0
	reason := "No promotion applied."
	if strings.EqualFold(code, "SAVE10") && cartTotal >= 1000 {
		discount = int(cartTotal * 0.1)
		reason = "SAVE10 applied."
	}
	return asJSON(map[string]any{"discount": discount, "reason": reason})
}

func (s *CommerceStore) CartAdd(userID, sku string, quantity int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quantity <= 0 {
		quantity = 1
	}
	cart := s.carts[userID]
	found := false
	for i := range cart {
		if cart[i].SKU == sku {
			cart[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		cart = append(cart, cartItem{SKU: sku, Quantity: quantity})
	}
	s.carts[userID] = cart
	return asJSON(map[string]any{"user_id": userID, "items": cart})
}

func (s *CommerceStore) CartRemove(userID, sku string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []cartItem
	for _, item := range s.carts[userID] {
		if item.SKU != sku {
			kept = append(kept, item)
		}
	}
	if kept == nil {
		kept = []cartItem{}
	}
	s.carts[userID] = kept
	return asJSON(map[string]any{"user_id": userID, "items": kept})
}

func (s *CommerceStore) CartView(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.carts[userID]
	if items == nil {
		items = []cartItem{}
	}
	return asJSON(map[string]any{"user_id": userID, "items": items})
}

func (s *CommerceStore) FraudCheck(orderTotal float64, orderID string) string {
	risk := "low"
	if orderTotal >= 20000 {
		risk = "review"
	}
	return asJSON(map[string]any{"order_id": orderID, "risk": risk})
}

// Checkout converts the user's cart into an order plus a shipment and empties
// the cart. An empty cart is an error payload, not a Go error.
func (s *CommerceStore) Checkout(userID, paymentMethod, address string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.carts[userID]
	if len(cart) == 0 {
		return asJSON(map[string]any{"error": "Cart is empty."})
	}
	total := 0
	for _, item := range cart {
		if p := s.findProduct(item.SKU); p != nil {
			total += p.Price * item.Quantity
		}
	}
	orderID := s.nextRef("ord")
	trackingID := s.nextRef("trk")
	s.orders[orderID] = map[string]any{
		"order_id": orderID, "user_id": userID, "items": cart,
		"total": total, "status": "confirmed", "payment_method": paymentMethod,
		"address": address,
	}
	s.shipments[trackingID] = map[string]any{
		"tracking_id": trackingID, "order_id": orderID, "status": "label_created",
	}
	s.carts[userID] = nil
	return asJSON(map[string]any{"order_id": orderID, "total": total, "tracking_id": trackingID})
}

func (s *CommerceStore) OrderStatus(orderID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return asJSON(map[string]any{"order_id": orderID, "status": "not_found"})
	}
	return asJSON(order)
}

func (s *CommerceStore) TrackShipment(trackingID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	shipment, ok := s.shipments[trackingID]
	if !ok {
		return asJSON(map[string]any{"tracking_id": trackingID, "status": "not_found"})
	}
	return asJSON(shipment)
}

func (s *CommerceStore) ReturnRequest(orderID, reason string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return asJSON(map[string]any{"order_id": orderID, "status": "not_found"})
	}
	order["status"] = "return_requested"
	order["return_reason"] = reason
	return asJSON(map[string]any{"order_id": orderID, "status": "return_requested"})
}

func (s *CommerceStore) RefundStatus(orderID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return asJSON(map[string]any{"order_id": orderID, "refund_status": "not_found"})
	}
	status := "n/a"
	if order["status"] == "return_requested" {
		status = "pending"
	}
	return asJSON(map[string]any{"order_id": orderID, "refund_status": status})
}

func (s *CommerceStore) Reorder(userID, orderID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return asJSON(map[string]any{"order_id": orderID, "status": "not_found"})
	}
	items, _ := order["items"].([]cartItem)
	s.carts[userID] = append([]cartItem(nil), items...)
	return asJSON(map[string]any{"user_id": userID, "items": s.carts[userID]})
}

func (s *CommerceStore) SupportTicket(userID, subject, description string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticketID := s.nextRef("tic")
	ticket := map[string]any{
		"ticket_id": ticketID, "user_id": userID,
		"subject": subject, "description": description, "status": "open",
	}
	s.tickets[ticketID] = ticket
	return asJSON(ticket)
}

// CommerceRegistry builds the tool registry over a commerce store, one tool
// per store operation, all returning JSON.
func CommerceRegistry(store *CommerceStore) *Registry {
	wrap := func(name, desc string, fn func(args map[string]string) string) Tool {
		return FuncTool{ToolName: name, Desc: desc,
			Fn: func(_ context.Context, args map[string]string) (string, error) {
				return fn(args), nil
			}}
	}
	return NewRegistry(
		wrap("catalog_search_tool", "Search the product catalog.", func(args map[string]string) string {
			limit := atoiDefault(args["limit"], 5)
			maxPrice, _ := strconv.ParseFloat(args["max_price"], 64)
			return store.CatalogSearch(args["query"], limit, maxPrice, args["category"])
		}),
		wrap("inventory_check_tool", "Check stock for a SKU.", func(args map[string]string) string {
			return store.InventoryCheck(args["sku"])
		}),
		wrap("pricing_tool", "Look up pricing for a SKU.", func(args map[string]string) string {
			return store.PricingLookup(args["sku"], args["user_id"])
		}),
		wrap("promo_tool", "Check promotions for a cart total.", func(args map[string]string) string {
			total, _ := strconv.ParseFloat(args["cart_total"], 64)
			return store.PromoCheck(total, args["code"])
		}),
		wrap("cart_add_tool", "Add an item to the cart.", func(args map[string]string) string {
			return store.CartAdd(args["user_id"], args["sku"], atoiDefault(args["quantity"], 1))
		}),
		wrap("cart_remove_tool", "Remove an item from the cart.", func(args map[string]string) string {
			return store.CartRemove(args["user_id"], args["sku"])
		}),
		wrap("cart_view_tool", "View the cart.", func(args map[string]string) string {
			return store.CartView(args["user_id"])
		}),
		wrap("fraud_check_tool", "Run a fraud risk check.", func(args map[string]string) string {
			total, _ := strconv.ParseFloat(args["order_total"], 64)
			return store.FraudCheck(total, args["order_id"])
		}),
		wrap("checkout_tool", "Place the order from the cart.", func(args map[string]string) string {
			return store.Checkout(args["user_id"], args["payment_method"], args["address"])
		}),
		wrap("order_status_tool", "Fetch order status.", func(args map[string]string) string {
			return store.OrderStatus(args["order_id"])
		}),
		wrap("logistics_tool", "Track a shipment.", func(args map[string]string) string {
			return store.TrackShipment(args["tracking_id"])
		}),
		wrap("return_tool", "Open a return request.", func(args map[string]string) string {
			return store.ReturnRequest(args["order_id"], args["reason"])
		}),
		wrap("refund_tool", "Check refund status.", func(args map[string]string) string {
			return store.RefundStatus(args["order_id"])
		}),
		wrap("reorder_tool", "Rebuild the cart from a past order.", func(args map[string]string) string {
			return store.Reorder(args["user_id"], args["order_id"])
		}),
		wrap("support_tool", "Open a support ticket.", func(args map[string]string) string {
			return store.SupportTicket(args["user_id"], args["subject"], args["description"])
		}),
	)
}

func atoiDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
