package handoff

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
)

type RoleKind string

const (
	KindDiscovery  RoleKind = "discovery"
	KindBasicOrder RoleKind = "basic_order"
	KindFullOrder  RoleKind = "full_order"
	KindTerminated RoleKind = "terminated"
)

func (k RoleKind) IsOrder() bool {
	return k == KindBasicOrder || k == KindFullOrder
}

// Role is the active node of the conversation state machine. Order roles carry
// the product they were entered for; the product type is never changed after entry.
type Role struct {
	Kind        RoleKind             `json:"kind"`
	Product     contractx.ProductRef `json:"product,omitempty"`
	ProductName string               `json:"product_name,omitempty"`
	Detail      string               `json:"-"`
}

func Discovery() Role {
	return Role{Kind: KindDiscovery}
}

func Terminated() Role {
	return Role{Kind: KindTerminated}
}

func BasicOrder(ref contractx.ProductRef, name, detail string) Role {
	return Role{Kind: KindBasicOrder, Product: ref, ProductName: name, Detail: detail}
}

func FullOrder(ref contractx.ProductRef, name, detail string) Role {
	return Role{Kind: KindFullOrder, Product: ref, ProductName: name, Detail: detail}
}

// OrderRoleFor routes a fetched product to its order role: basic products get the
// quantity-only flow, variant and customizable products the full one.
func OrderRoleFor(ref contractx.ProductRef, detail contractx.ProductDetail, currency string) (Role, error) {
	if detail == nil {
		return Role{}, fmt.Errorf("%w: product detail is required", contractx.ErrValidation)
	}
	text := detail.Render(currency)
	switch ref.Type {
	case contractx.ProductBasic:
		return BasicOrder(ref, detail.Name(), text), nil
	case contractx.ProductVariant, contractx.ProductCustomizable:
		return FullOrder(ref, detail.Name(), text), nil
	default:
		return Role{}, fmt.Errorf("%w: %q", contractx.ErrInvalidProductType, ref.Type)
	}
}

func (r Role) validate() error {
	switch r.Kind {
	case KindDiscovery, KindTerminated:
		return nil
	case KindBasicOrder:
		if r.Product.Type != contractx.ProductBasic {
			return fmt.Errorf("%w: basic order requires a basic product, got %q", contractx.ErrInvalidProductType, r.Product.Type)
		}
	case KindFullOrder:
		if r.Product.Type != contractx.ProductVariant && r.Product.Type != contractx.ProductCustomizable {
			return fmt.Errorf("%w: full order requires a variant or customizable product, got %q", contractx.ErrInvalidProductType, r.Product.Type)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", contractx.ErrValidation, r.Kind)
	}
	if r.Product.ID <= 0 {
		return fmt.Errorf("%w: order role requires a product id", contractx.ErrValidation)
	}
	if strings.TrimSpace(r.ProductName) == "" {
		return fmt.Errorf("%w: order role requires a product name", contractx.ErrValidation)
	}
	return nil
}

func (r Role) String() string {
	if r.Kind.IsOrder() {
		return fmt.Sprintf("%s(%s)", r.Kind, r.Product)
	}
	return string(r.Kind)
}

var transitions = map[RoleKind]map[RoleKind]bool{
	KindDiscovery:  {KindBasicOrder: true, KindFullOrder: true, KindTerminated: true},
	KindBasicOrder: {KindDiscovery: true, KindTerminated: true},
	KindFullOrder:  {KindDiscovery: true, KindTerminated: true},
	KindTerminated: {},
}

// Allowed reports whether the state machine has an edge from -> to.
func Allowed(from, to RoleKind) bool {
	return transitions[from][to]
}
