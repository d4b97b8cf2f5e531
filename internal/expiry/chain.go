package expiry

import (
	"fmt"
	"sort"
	"time"
)

// Info describes one available contract expiry.
type Info struct {
	Date         time.Time
	DaysToExpiry int
}

// IsExpiryDay reports whether the expiry falls on the reference day itself.
func (i Info) IsExpiryDay() bool { return i.DaysToExpiry == 0 }

// Chain holds the upcoming expiries for an underlying, sorted nearest first.
// It is rebuilt from the exchange instrument list; selection is pure.
type Chain struct {
	expiries []Info
}

// NewChain builds a chain from raw expiry dates relative to now. Dates in the
// past are dropped; duplicates collapse to one entry.
func NewChain(now time.Time, dates []time.Time) *Chain {
	today := now.Truncate(24 * time.Hour)
	seen := make(map[time.Time]bool, len(dates))

	var expiries []Info
	for _, d := range dates {
		day := d.Truncate(24 * time.Hour)
		if seen[day] {
			continue
		}
		seen[day] = true

		days := int(day.Sub(today).Hours() / 24)
		if days < 0 {
			continue
		}
		expiries = append(expiries, Info{Date: day, DaysToExpiry: days})
	}

	sort.Slice(expiries, func(a, b int) bool {
		return expiries[a].DaysToExpiry < expiries[b].DaysToExpiry
	})

	return &Chain{expiries: expiries}
}

// Nearest returns the nearest upcoming expiry. The scalper always trades the
// front contract; further-out expiries are only listed for reporting.
func (c *Chain) Nearest() (Info, error) {
	if len(c.expiries) == 0 {
		return Info{}, fmt.Errorf("expiry chain is empty")
	}
	return c.expiries[0], nil
}

// All returns every known upcoming expiry, nearest first.
func (c *Chain) All() []Info {
	out := make([]Info, len(c.expiries))
	copy(out, c.expiries)
	return out
}

// CurrentPolicy derives the trading policy for the nearest expiry.
func (c *Chain) CurrentPolicy() (Policy, error) {
	info, err := c.Nearest()
	if err != nil {
		return Policy{}, err
	}
	return DerivePolicy(info.DaysToExpiry), nil
}
