package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
)

const (
	defaultOrderCurrencyCode   = "EUR"
	defaultOrderCurrencySymbol = "€"
)

// OrderState is a read projection of the browser customization panel. It is replaced
// wholesale by every sync and is never patched in place.
type OrderState struct {
	ProductName    string        `json:"product_name"`
	TotalPrice     float64       `json:"total_price"`
	Quantity       int           `json:"quantity"`
	OptionGroups   []OptionGroup `json:"option_groups"`
	CurrencyCode   string        `json:"currency_code"`
	CurrencySymbol string        `json:"currency_symbol"`
	LastSyncedAt   time.Time     `json:"last_synced_at"`
}

type OptionGroup struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	MinSelect int      `json:"min_select"`
	MaxSelect int      `json:"max_select"`
	Options   []Option `json:"options"`
}

type Option struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	UnitPrice        float64 `json:"unit_price"`
	StockRemaining   int     `json:"stock_remaining"`
	MaxQuantity      int     `json:"max_quantity"`
	SelectedQuantity int     `json:"selected_quantity"`
}

func (o Option) Selected() bool {
	return o.SelectedQuantity > 0
}

// Synced reports whether the projection has been populated at least once.
func (s *OrderState) Synced() bool {
	return s != nil && !s.LastSyncedAt.IsZero()
}

// Option looks up an option by group and option id.
func (s *OrderState) Option(groupID, optionID int64) (Option, bool) {
	if s == nil {
		return Option{}, false
	}
	for _, g := range s.OptionGroups {
		if g.ID != groupID {
			continue
		}
		for _, o := range g.Options {
			if o.ID == optionID {
				return o, true
			}
		}
	}
	return Option{}, false
}

type syncPayload struct {
	ProductName     string          `json:"product_name"`
	CurrencyCode    *string         `json:"currency_code"`
	CurrencySymbol  *string         `json:"currency_symbol"`
	CurrentQuantity *int            `json:"current_quantity"`
	Price           looseFloat      `json:"price"`
	OptionsGroups   []syncGroupWire `json:"options_groups"`
}

type syncGroupWire struct {
	ID         int64            `json:"id"`
	GroupName  string           `json:"group_name"`
	MinOptions int              `json:"min_options"`
	MaxOptions int              `json:"max_options"`
	Options    []syncOptionWire `json:"options"`
}

type syncOptionWire struct {
	ID         int64      `json:"id"`
	OptionName string     `json:"option_name"`
	Price      looseFloat `json:"price"`
	Stock      int        `json:"stock"`
	QtyMax     int        `json:"qty_max"`
	Qty        *int       `json:"qty"`
	Selected   *bool      `json:"selected"`
}

// looseFloat accepts numbers, numeric strings and null. Unparseable values become 0.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = looseFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		*f = 0
		return nil
	}
	*f = looseFloat(v)
	return nil
}

// ParseSync builds a fresh OrderState from a syncProductOptions response.
func ParseSync(raw json.RawMessage, now time.Time) (*OrderState, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		return nil, fmt.Errorf("%w: syncProductOptions", contractx.ErrEmptyResponse)
	}

	var p syncPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("%w: decode sync response: %v", contractx.ErrRemote, err)
	}

	st := &OrderState{
		ProductName:    strings.TrimSpace(p.ProductName),
		TotalPrice:     float64(p.Price),
		Quantity:       1,
		CurrencyCode:   defaultOrderCurrencyCode,
		CurrencySymbol: defaultOrderCurrencySymbol,
		OptionGroups:   make([]OptionGroup, 0, len(p.OptionsGroups)),
		LastSyncedAt:   now.UTC(),
	}
	if p.CurrencyCode != nil && strings.TrimSpace(*p.CurrencyCode) != "" {
		st.CurrencyCode = strings.TrimSpace(*p.CurrencyCode)
	}
	if p.CurrencySymbol != nil && strings.TrimSpace(*p.CurrencySymbol) != "" {
		st.CurrencySymbol = strings.TrimSpace(*p.CurrencySymbol)
	}
	if p.CurrentQuantity != nil && *p.CurrentQuantity >= 1 {
		st.Quantity = *p.CurrentQuantity
	}

	for _, g := range p.OptionsGroups {
		group := OptionGroup{
			ID:        g.ID,
			Name:      strings.TrimSpace(g.GroupName),
			MinSelect: g.MinOptions,
			MaxSelect: g.MaxOptions,
			Options:   make([]Option, 0, len(g.Options)),
		}
		for _, o := range g.Options {
			selected := 0
			switch {
			case o.Qty != nil:
				selected = max(*o.Qty, 0)
			case o.Selected != nil && *o.Selected:
				selected = 1
			}
			group.Options = append(group.Options, Option{
				ID:               o.ID,
				Name:             strings.TrimSpace(o.OptionName),
				UnitPrice:        float64(o.Price),
				StockRemaining:   o.Stock,
				MaxQuantity:      o.QtyMax,
				SelectedQuantity: selected,
			})
		}
		st.OptionGroups = append(st.OptionGroups, group)
	}

	return st, nil
}

// Summary renders the projection for the LLM.
func (s *OrderState) Summary() string {
	if !s.Synced() {
		return "Order options have not been synced yet."
	}

	var b strings.Builder
	qty := ""
	if s.Quantity > 1 {
		qty = fmt.Sprintf(" (x%d)", s.Quantity)
	}
	fmt.Fprintf(&b, "This Order Summary for: %s%s\n", s.ProductName, qty)
	fmt.Fprintf(&b, "Total Price: %.2f%s\n", s.TotalPrice, s.CurrencySymbol)

	if len(s.OptionGroups) == 0 {
		b.WriteString("No options available.\n")
	} else {
		b.WriteString("Options:\n")
		for _, g := range s.OptionGroups {
			fmt.Fprintf(&b, "  - %s (group_id: %d, choose %d-%d):\n", g.Name, g.ID, g.MinSelect, g.MaxSelect)
			for _, o := range g.Options {
				mark := "[ ]"
				if o.Selected() {
					mark = "[x]"
				}
				fmt.Fprintf(&b, "    * %s %s (option_id: %d) - %.2f%s (Qty: %d/%d, Stock: %d)\n",
					mark, o.Name, o.ID, o.UnitPrice, s.CurrencySymbol, o.SelectedQuantity, o.MaxQuantity, o.StockRemaining)
			}
		}
	}

	fmt.Fprintf(&b, "Last synced: %s", s.LastSyncedAt.Format("2006-01-02 15:04:05"))
	return b.String()
}
