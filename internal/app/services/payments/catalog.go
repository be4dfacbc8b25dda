package payments

import (
	"fmt"
	"strings"

	"github.com/wishbank/wishbank/internal/app/domain/payment"
)

const defaultCurrency = "usd"

// Catalog is the fixed set of purchasable bundles, kept in listing order.
type Catalog struct {
	order   []string
	bundles map[string]payment.Bundle
}

// NewCatalog validates bundles and indexes them by id. An empty slice yields
// the default catalog.
func NewCatalog(bundles []payment.Bundle) (*Catalog, error) {
	if len(bundles) == 0 {
		bundles = payment.DefaultBundles()
	}
	c := &Catalog{bundles: make(map[string]payment.Bundle, len(bundles))}
	for _, b := range bundles {
		b.ID = strings.TrimSpace(b.ID)
		b.Currency = strings.ToLower(strings.TrimSpace(b.Currency))
		if b.Currency == "" {
			b.Currency = defaultCurrency
		}
		switch {
		case b.ID == "":
			return nil, fmt.Errorf("bundle id is required")
		case b.Amount <= 0:
			return nil, fmt.Errorf("bundle %s: amount must be positive", b.ID)
		case b.Credits <= 0:
			return nil, fmt.Errorf("bundle %s: credits must be positive", b.ID)
		}
		if _, dup := c.bundles[b.ID]; dup {
			return nil, fmt.Errorf("bundle %s defined twice", b.ID)
		}
		c.bundles[b.ID] = b
		c.order = append(c.order, b.ID)
	}
	return c, nil
}

// Bundle looks up a bundle by id.
func (c *Catalog) Bundle(id string) (payment.Bundle, bool) {
	b, ok := c.bundles[strings.TrimSpace(id)]
	return b, ok
}

// Bundles lists the catalog.
func (c *Catalog) Bundles() []payment.Bundle {
	out := make([]payment.Bundle, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.bundles[id])
	}
	return out
}
