package catalog

import (
	"strings"
	"testing"

	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
)

func ptr[T any](v T) *T { return &v }

func TestFormatCandidates(t *testing.T) {
	t.Parallel()

	if got := FormatCandidates(nil); got != "No search results found." {
		t.Fatalf("FormatCandidates(nil) = %q", got)
	}

	got := FormatCandidates([]contractx.Candidate{{
		ID:          12,
		Document:    "Classic Burger - Beef patty",
		Type:        contractx.ProductCustomizable,
		RedirectURL: "https://shop.example.com/product/classic-burger",
		Score:       0.8512,
		Rank:        1,
	}})

	for _, want := range []string{
		"Found 1 relevant results:",
		"Result #1 (Relevance: 85.12%)",
		"Product: Classic Burger - Beef patty",
		"product_id: 12",
		"product_type: customizable",
		"redirect_url: https://shop.example.com/product/classic-burger",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("FormatCandidates() missing %q in:\n%s", want, got)
		}
	}
}

func TestCleanHTML(t *testing.T) {
	t.Parallel()

	got := cleanHTML("<p>Juicy <b>beef</b>&nbsp;patty</p>\n<ul><li>fresh</li></ul>")
	if got != "Juicy beef patty fresh" {
		t.Fatalf("cleanHTML() = %q", got)
	}
	if strings.ContainsAny(got, "<>") {
		t.Fatalf("cleanHTML() kept markup: %q", got)
	}
}

func TestProductForVectorCandidate(t *testing.T) {
	t.Parallel()

	row := ProductForVector{
		ProductID:          7,
		ProductName:        "Veggie Wrap",
		ProductDescription: "<p>Fresh greens</p>",
		ProductPermalink:   "veggie-wrap",
		HasOptions:         1,
		HasVariant:         1,
		Categories:         []Category{{ID: 1, Name: "Wraps"}},
	}

	c := row.Candidate("https://shop.example.com/")
	if c.Type != contractx.ProductCustomizable {
		t.Fatalf("Type = %q, want customizable", c.Type)
	}
	if c.Document != "Veggie Wrap - Fresh greens" {
		t.Fatalf("Document = %q", c.Document)
	}
	if c.RedirectURL != "https://shop.example.com/product/veggie-wrap" {
		t.Fatalf("RedirectURL = %q", c.RedirectURL)
	}
	if len(c.Categories) != 1 || c.Categories[0] != "Wraps" {
		t.Fatalf("Categories = %#v", c.Categories)
	}

	row.HasOptions = 0
	if row.Type() != contractx.ProductVariant {
		t.Fatalf("Type() = %q, want variant", row.Type())
	}
	row.HasVariant = 0
	if row.Type() != contractx.ProductBasic {
		t.Fatalf("Type() = %q, want basic", row.Type())
	}
}

func TestRenderBasicSingleWithDiscount(t *testing.T) {
	t.Parallel()

	d := &BasicSingleDetail{ProductCore: ProductCore{
		ProductID:        3,
		ProductName:      "Classic Burger",
		BrandName:        ptr("Palace"),
		Price:            ptr(10.0),
		HasDiscount:      ptr(1),
		DiscountTypeName: ptr("Percentage"),
		DiscountAmount:   ptr(20.0),
		Quantity:         ptr(5),
	}}

	got := d.Render("$")
	for _, want := range []string{
		"# Classic Burger",
		"**Product ID:** 3",
		"**Brand:** Palace",
		"- **Base Price:** 10.00 $",
		"- **Discount Price:** 8.00 $",
		"- **Discount:** 20% off (2.00 $)",
		"- **Available Quantity:** 5",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("Render() missing %q in:\n%s", want, got)
		}
	}
	if d.Ref() != (contractx.ProductRef{ID: 3, Type: contractx.ProductBasic}) {
		t.Fatalf("unexpected ref: %#v", d.Ref())
	}
}

func TestRenderFlatDiscount(t *testing.T) {
	t.Parallel()

	d := &BasicSingleDetail{ProductCore: ProductCore{
		ProductName:      "Fries",
		Price:            ptr(4.0),
		HasDiscount:      ptr(1),
		DiscountTypeName: ptr("Flat"),
		DiscountAmount:   ptr(1.5),
		DiscountLabel:    ptr("Lunch deal"),
	}}

	got := d.Render("€")
	for _, want := range []string{
		"- **Discount Price:** 2.50 €",
		"- **Discount Amount:** 1.50 € off",
		"- **Discount Label:** Lunch deal",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("Render() missing %q in:\n%s", want, got)
		}
	}
}

func TestRenderCustomizableOptions(t *testing.T) {
	t.Parallel()

	d := &CustomizableDetail{
		ProductCore: ProductCore{ProductID: 9, ProductName: "Build Your Bowl"},
		OptionsGroups: []OptionsGroup{
			{GroupID: 4, GroupName: "Base", MinOptions: 1, MaxOptions: 1, Options: []CustomOption{
				{ID: 40, OptionName: "Rice", Price: ptr(1.0)},
				{ID: 41, OptionName: "Quinoa"},
			}},
			{GroupID: 5, GroupName: "Empty"},
		},
	}

	got := d.Render("$")
	for _, want := range []string{
		"## Customization Options",
		"### Base",
		"*group_id: 4*",
		"*choose 1-1*",
		"- **Rice** (option_id: 40) - 1.00 $",
		"- **Quinoa** (option_id: 41) - N/A",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("Render() missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "### Empty") {
		t.Fatalf("empty groups must be skipped:\n%s", got)
	}
}

func TestRenderVariantColors(t *testing.T) {
	t.Parallel()

	d := &BasicVariantDetail{
		ProductCore: ProductCore{ProductID: 2, ProductName: "Tee", HasVariant: 1},
		Variant:     ptr("M / Red"),
		Colors:      []Color{{ID: 11, Name: "Red"}},
		Variants: []VariantGroup{{GroupID: 6, GroupName: "Size", Options: []VariantOption{
			{OptionID: 60, OptionName: "M"},
		}}},
	}

	got := d.Render("$")
	for _, want := range []string{
		"**Current Variant:** M / Red",
		"*group_id: -1*",
		"- **Red**  (option_id: 11)",
		"### Size",
		"- **M** (option_id: 60)",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("Render() missing %q in:\n%s", want, got)
		}
	}
}
