package catalog

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	"github.com/uptrace/bun"
)

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Color struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type VariantOption struct {
	OptionID   int64  `json:"option_id"`
	OptionName string `json:"option_name"`
}

type VariantGroup struct {
	GroupID   int64           `json:"group_id"`
	GroupName string          `json:"group_name"`
	Options   []VariantOption `json:"options"`
}

type CustomOption struct {
	ID         int64    `json:"id"`
	OptionName string   `json:"option_name"`
	Price      *float64 `json:"price"`
	Stock      int      `json:"stock"`
	QtyMax     int      `json:"qty_max"`
}

type OptionsGroup struct {
	GroupID    int64          `json:"group_id"`
	GroupName  string         `json:"group_name"`
	MinOptions int            `json:"min_options"`
	MaxOptions int            `json:"max_options"`
	Options    []CustomOption `json:"options"`
}

// ProductCore holds the columns shared by every detail view.
type ProductCore struct {
	ProductID          int64      `bun:"product_id,pk" json:"product_id"`
	ProductName        string     `bun:"product_name" json:"product_name"`
	ProductDescription string     `bun:"product_description" json:"product_description"`
	ProductPermalink   string     `bun:"product_permalink" json:"product_permalink"`
	BrandID            *int64     `bun:"brand_id" json:"brand_id,omitempty"`
	BrandName          *string    `bun:"brand_name" json:"brand_name,omitempty"`
	Categories         []Category `bun:"categories,type:jsonb" json:"categories"`
	Price              *float64   `bun:"price" json:"price,omitempty"`
	Quantity           *int       `bun:"quantity" json:"quantity,omitempty"`
	HasDiscount        *int       `bun:"has_discount" json:"has_discount,omitempty"`
	DiscountTypeName   *string    `bun:"discount_type_name" json:"discount_type_name,omitempty"`
	DiscountLabel      *string    `bun:"discount_label" json:"discount_label,omitempty"`
	DiscountAmount     *float64   `bun:"discount_amount" json:"discount_amount,omitempty"`
	HasVariant         int        `bun:"has_variant" json:"has_variant"`
}

func (p ProductCore) Name() string {
	return p.ProductName
}

type BasicSingleDetail struct {
	bun.BaseModel `bun:"table:agent_vw_basic_single_products_details_master" json:"-"`
	ProductCore
}

func (d *BasicSingleDetail) Ref() contractx.ProductRef {
	return contractx.ProductRef{ID: d.ProductID, Type: contractx.ProductBasic}
}

type BasicVariantDetail struct {
	bun.BaseModel `bun:"table:agent_vw_basic_variant_products_details_master" json:"-"`
	ProductCore
	Variant  *string        `bun:"variant" json:"variant,omitempty"`
	Colors   []Color        `bun:"colors,type:jsonb" json:"colors,omitempty"`
	Variants []VariantGroup `bun:"variants,type:jsonb" json:"variants,omitempty"`
}

func (d *BasicVariantDetail) Ref() contractx.ProductRef {
	return contractx.ProductRef{ID: d.ProductID, Type: contractx.ProductVariant}
}

type CustomizableDetail struct {
	bun.BaseModel `bun:"table:agent_vw_customizable_products_details_master" json:"-"`
	ProductCore
	OptionsGroups []OptionsGroup `bun:"options_groups,type:jsonb" json:"options_groups,omitempty"`
}

func (d *CustomizableDetail) Ref() contractx.ProductRef {
	return contractx.ProductRef{ID: d.ProductID, Type: contractx.ProductCustomizable}
}

var (
	_ contractx.ProductDetail = (*BasicSingleDetail)(nil)
	_ contractx.ProductDetail = (*BasicVariantDetail)(nil)
	_ contractx.ProductDetail = (*CustomizableDetail)(nil)
)

// ProductForVector is one row of the search index source view.
type ProductForVector struct {
	bun.BaseModel `bun:"table:agent_vw_products_for_vector_master"`

	ProductID          int64      `bun:"product_id,pk"`
	ProductName        string     `bun:"product_name"`
	ProductDescription string     `bun:"product_description"`
	ProductPermalink   string     `bun:"product_permalink"`
	HasOptions         int        `bun:"has_options"`
	HasVariant         int        `bun:"has_variant"`
	BrandID            *int64     `bun:"brand_id"`
	BrandName          *string    `bun:"brand_name"`
	Categories         []Category `bun:"categories,type:jsonb"`
}

// Type derives the product type: options win over variants.
func (p ProductForVector) Type() contractx.ProductType {
	switch {
	case p.HasOptions == 1:
		return contractx.ProductCustomizable
	case p.HasVariant == 1:
		return contractx.ProductVariant
	default:
		return contractx.ProductBasic
	}
}

// Candidate converts the row into an unscored search candidate.
func (p ProductForVector) Candidate(baseURL string) contractx.Candidate {
	categories := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		categories = append(categories, c.Name)
	}
	brand := ""
	if p.BrandName != nil {
		brand = *p.BrandName
	}
	return contractx.Candidate{
		ID:          p.ProductID,
		Document:    fmt.Sprintf("%s - %s", p.ProductName, cleanHTML(p.ProductDescription)),
		Type:        p.Type(),
		RedirectURL: fmt.Sprintf("%s/product/%s", strings.TrimRight(baseURL, "/"), strings.TrimLeft(p.ProductPermalink, "/")),
		Brand:       brand,
		Categories:  categories,
	}
}
