package sale

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/salon-pos/internal/domain/catalog"
	"github.com/xenking/salon-pos/internal/domain/ledger"
)

// Cart is the transient, ordered set of lines of one checkout session. The
// zero value is not usable; create carts with NewCart.
//
// Products and misc items merge by catalog kind and id: adding the same item
// again bumps the existing line's quantity. Service lines never merge, because each
// carries its own staff attribution even for identical services.
type Cart struct {
	lines []ledger.LineItem
	newID func() string
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{newID: func() string { return uuid.New().String() }}
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []ledger.LineItem {
	return append([]ledger.LineItem(nil), c.lines...)
}

// Len returns the number of lines.
func (c *Cart) Len() int { return len(c.lines) }

// AddServiceLine appends a quantity-1 line for service attributed to staffID,
// priced at the service's current catalog price.
func (c *Cart) AddServiceLine(service catalog.Item, staffID string) (ledger.LineItem, error) {
	if staffID == "" {
		return ledger.LineItem{}, &ledger.ValidationError{Field: "staffId", Reason: "a staff member must be selected for a service"}
	}
	if service.Kind != catalog.KindService {
		return ledger.LineItem{}, &ledger.ValidationError{Field: "itemId", Reason: "item " + service.ID + " is not a service"}
	}

	line := ledger.LineItem{
		ID:              service.ID + "-" + c.newID(),
		ItemKind:        string(catalog.KindService),
		ItemID:          service.ID,
		Name:            service.Name,
		UnitPrice:       service.Price,
		Quantity:        1,
		AttributedStaff: staffID,
	}
	c.lines = append(c.lines, line)
	return line, nil
}

// AddCatalogLine adds one unit of a product or misc item. An existing line
// for the same item is incremented; otherwise a new line is appended at the
// item's current price.
func (c *Cart) AddCatalogLine(item catalog.Item) (ledger.LineItem, error) {
	if item.Kind == catalog.KindService {
		return ledger.LineItem{}, &ledger.ValidationError{Field: "itemId", Reason: "services require a staff attribution"}
	}

	if i := c.indexOfItem(string(item.Kind), item.ID); i >= 0 {
		c.lines[i].Quantity++
		return c.lines[i], nil
	}

	line := ledger.LineItem{
		ID:        CatalogLineID(item.Kind, item.ID),
		ItemKind:  string(item.Kind),
		ItemID:    item.ID,
		Name:      item.Name,
		UnitPrice: item.Price,
		Quantity:  1,
	}
	c.lines = append(c.lines, line)
	return line, nil
}

// SetLineQuantity sets the quantity of a line, removing it when qty <= 0.
// Stock levels are not consulted.
func (c *Cart) SetLineQuantity(lineID string, qty int) error {
	i := c.indexOf(lineID)
	if i < 0 {
		return &ledger.NotFoundError{Kind: "cart line", ID: lineID}
	}
	if qty <= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return nil
	}
	c.lines[i].Quantity = qty
	return nil
}

// RemoveLine drops a line.
func (c *Cart) RemoveLine(lineID string) error {
	return c.SetLineQuantity(lineID, 0)
}

// Load re-injects lines handed back by an annulment. Service lines are
// re-added under fresh ids; other lines follow the merge rule, keeping the
// price they were originally sold at.
func (c *Cart) Load(lines []ledger.LineItem) {
	for _, l := range lines {
		if l.IsService() {
			l.ID = l.ItemID + "-" + c.newID()
			c.lines = append(c.lines, l)
			continue
		}
		if i := c.indexOfItem(l.ItemKind, l.ItemID); i >= 0 {
			c.lines[i].Quantity += l.Quantity
			continue
		}
		c.lines = append(c.lines, l)
	}
}

// Total returns the cart total.
func (c *Cart) Total() decimal.Decimal {
	return ComputeTotal(c.lines)
}

// Clear empties the cart.
func (c *Cart) Clear() { c.lines = nil }

func (c *Cart) indexOf(lineID string) int {
	for i := range c.lines {
		if c.lines[i].ID == lineID {
			return i
		}
	}
	return -1
}

// indexOfItem finds the mergeable line for a catalog item. Service lines
// never match.
func (c *Cart) indexOfItem(kind, itemID string) int {
	for i := range c.lines {
		l := &c.lines[i]
		if !l.IsService() && l.ItemKind == kind && l.ItemID == itemID {
			return i
		}
	}
	return -1
}

// CatalogLineID is the cart line id of a product or misc item.
func CatalogLineID(kind catalog.Kind, itemID string) string {
	return string(kind) + "/" + itemID
}

// ComputeTotal returns the sum of unitPrice * quantity over lines.
func ComputeTotal(lines []ledger.LineItem) decimal.Decimal {
	return ledger.SumLines(lines)
}
