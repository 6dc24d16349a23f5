package pricing

import "strings"

// Catalog holds the authoritative unit price of every orderable item,
// keyed by normalized name.
type Catalog struct {
	prices map[string]int64
	names  map[string]string
}

func NewCatalog(prices map[string]int64) *Catalog {
	c := &Catalog{
		prices: make(map[string]int64, len(prices)),
		names:  make(map[string]string, len(prices)),
	}
	for name, price := range prices {
		key := normalize(name)
		c.prices[key] = price
		c.names[key] = name
	}
	return c
}

// Lookup returns the canonical item name and its price.
func (c *Catalog) Lookup(name string) (string, int64, bool) {
	key := normalize(name)
	price, ok := c.prices[key]
	if !ok {
		return "", 0, false
	}
	return c.names[key], price, true
}

func (c *Catalog) Len() int {
	return len(c.prices)
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// DefaultMenu is the café menu.
func DefaultMenu() *Catalog {
	return NewCatalog(map[string]int64{
		// Coffee & Beverages
		"Latte":                       280,
		"Signature Diggin Cappuccino": 280,
		"Rose Cardamom Latte":         320,
		"Hazelnut Mocha":              340,
		"Lavender Honey Oat Latte":    360,
		// Pastas & Risottos
		"Spaghetti Aglio e Olio":     540,
		"Truffle Mushroom Risotto":   680,
		"Penne Arrabiata":            480,
		"Chicken Alfredo Fettuccine": 620,
		// Sandwiches & Burgers
		"Classic Diggin Club":         520,
		"Mediterranean Veggie Panini": 440,
		"Truffle Smash Burger":        580,
		"Halloumi & Avocado Toast":    420,
		// Pizzas
		"Margherita Classica": 480,
		"Quattro Formaggi":    580,
		"Pepperoni Supremo":   620,
		"Garden Fresh Veggie": 540,
		// Desserts & Pastries
		"Tiramisu Classico":        380,
		"Molten Chocolate Fondant": 420,
		"New York Cheesecake":      360,
		"Pistachio Rose Baklava":   320,
		// Smoothies & Cold Drinks
		"Berry Bliss Smoothie": 280,
		"Mango Tango":          260,
		"Green Goddess":        300,
		"Cold Brew Tonic":      320,
	})
}
