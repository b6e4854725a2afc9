package catalog

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
)

var stripPolicy = bluemonday.StrictPolicy()

func cleanHTML(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	text := html.UnescapeString(stripPolicy.Sanitize(raw))
	return strings.Join(strings.Fields(text), " ")
}

// FormatCandidates renders ranked search results for the LLM.
func FormatCandidates(results []contractx.Candidate) string {
	if len(results) == 0 {
		return "No search results found."
	}

	parts := []string{fmt.Sprintf("Found %d relevant results:\n", len(results))}
	for _, r := range results {
		parts = append(parts, fmt.Sprintf(
			"\nResult #%d (Relevance: %.2f%%)\n---\nProduct: %s\nproduct_id: %d\nproduct_type: %s\nredirect_url: %s\n",
			r.Rank, r.Score*100, strings.TrimSpace(r.Document), r.ID, r.Type, r.RedirectURL,
		))
	}
	return strings.Join(parts, "\n")
}

func (p ProductCore) header() []string {
	lines := []string{
		"# " + p.ProductName,
		fmt.Sprintf("**Product ID:** %d", p.ProductID),
	}
	if p.BrandName != nil && *p.BrandName != "" {
		lines = append(lines, "**Brand:** "+*p.BrandName)
	}
	return lines
}

func (p ProductCore) pricing(currency string) []string {
	if p.Price == nil {
		return nil
	}
	price := *p.Price
	lines := []string{"\n## Pricing", fmt.Sprintf("- **Base Price:** %.2f %s", price, currency)}

	if p.HasDiscount == nil || *p.HasDiscount == 0 || p.DiscountAmount == nil || *p.DiscountAmount == 0 {
		return lines
	}
	amount := *p.DiscountAmount
	discountType := ""
	if p.DiscountTypeName != nil {
		discountType = *p.DiscountTypeName
	}

	switch discountType {
	case "Flat":
		lines = append(lines,
			fmt.Sprintf("- **Discount Price:** %.2f %s", price-amount, currency),
			fmt.Sprintf("- **Discount Amount:** %.2f %s off", amount, currency),
		)
	case "Percentage":
		value := price * amount / 100
		lines = append(lines,
			fmt.Sprintf("- **Discount Price:** %.2f %s", price-value, currency),
			fmt.Sprintf("- **Discount:** %.0f%% off (%.2f %s)", amount, value, currency),
		)
	}
	if p.DiscountLabel != nil && *p.DiscountLabel != "" {
		lines = append(lines, "- **Discount Label:** "+*p.DiscountLabel)
	}
	return lines
}

func (p ProductCore) body() []string {
	var lines []string
	if desc := cleanHTML(p.ProductDescription); desc != "" {
		lines = append(lines, "\n## Description", desc)
	}
	if len(p.Categories) > 0 {
		names := make([]string, 0, len(p.Categories))
		for _, c := range p.Categories {
			names = append(names, c.Name)
		}
		lines = append(lines, "\n## Categories", strings.Join(names, ", "))
	}
	return lines
}

func (p ProductCore) stock() []string {
	if p.Quantity == nil {
		return nil
	}
	return []string{"\n## Stock", fmt.Sprintf("- **Available Quantity:** %d", *p.Quantity)}
}

func (d *BasicSingleDetail) Render(currency string) string {
	lines := d.header()
	lines = append(lines, d.pricing(currency)...)
	lines = append(lines, d.body()...)
	lines = append(lines, d.stock()...)
	if d.HasVariant == 1 {
		lines = append(lines, "\n## Note", "*This product has variants available and no options to add, it's a stand alone product*")
	}
	return strings.Join(lines, "\n")
}

func (d *BasicVariantDetail) Render(currency string) string {
	lines := d.header()
	if d.Variant != nil && *d.Variant != "" {
		lines = append(lines, "**Current Variant:** "+*d.Variant)
	}
	lines = append(lines, d.pricing(currency)...)
	lines = append(lines, d.body()...)

	if len(d.Colors) > 0 {
		lines = append(lines, "\n## Available Colors", "*group_id: -1*")
		for _, c := range d.Colors {
			lines = append(lines, fmt.Sprintf("- **%s**  (option_id: %d)", c.Name, c.ID))
		}
	}

	if d.HasVariant == 1 && len(d.Variants) > 0 {
		lines = append(lines, "\n## Available Variants")
		for _, g := range d.Variants {
			if len(g.Options) == 0 {
				continue
			}
			lines = append(lines, "\n### "+g.GroupName, fmt.Sprintf("*group_id: %d*", g.GroupID), "")
			for _, o := range g.Options {
				lines = append(lines, fmt.Sprintf("- **%s** (option_id: %d)", o.OptionName, o.OptionID))
			}
		}
	}

	lines = append(lines, d.stock()...)
	return strings.Join(lines, "\n")
}

func (d *CustomizableDetail) Render(currency string) string {
	lines := d.header()
	lines = append(lines, d.pricing(currency)...)
	lines = append(lines, d.body()...)

	if len(d.OptionsGroups) > 0 {
		lines = append(lines, "\n## Customization Options")
		for _, g := range d.OptionsGroups {
			if len(g.Options) == 0 {
				continue
			}
			lines = append(lines,
				"\n### "+g.GroupName,
				fmt.Sprintf("*group_id: %d*", g.GroupID),
				fmt.Sprintf("*choose %d-%d*", g.MinOptions, g.MaxOptions),
				"",
			)
			for _, o := range g.Options {
				price := "N/A"
				if o.Price != nil {
					price = fmt.Sprintf("%.2f %s", *o.Price, currency)
				}
				lines = append(lines, fmt.Sprintf("- **%s** (option_id: %d) - %s", o.OptionName, o.ID, price))
			}
		}
	}
	return strings.Join(lines, "\n")
}
