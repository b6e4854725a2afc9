package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	catalogx "github.com/tanpawarit/Chative-Voice-Commerce/agent/catalog"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/handoff"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/remote"
	statex "github.com/tanpawarit/Chative-Voice-Commerce/agent/state"
)

const DefaultThreshold = 0.4

// Timeouts bounds each remote call made by the order tools.
type Timeouts struct {
	Sync      time.Duration `envconfig:"SYNC_TIMEOUT" default:"15s"`
	Select    time.Duration `envconfig:"SELECT_TIMEOUT" default:"10s"`
	Unselect  time.Duration `envconfig:"UNSELECT_TIMEOUT" default:"15s"`
	Quantity  time.Duration `envconfig:"QUANTITY_TIMEOUT" default:"10s"`
	AddToCart time.Duration `envconfig:"ADD_TO_CART_TIMEOUT" default:"10s"`
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Sync:      15 * time.Second,
		Select:    10 * time.Second,
		Unselect:  15 * time.Second,
		Quantity:  10 * time.Second,
		AddToCart: 10 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Sync <= 0 {
		t.Sync = d.Sync
	}
	if t.Select <= 0 {
		t.Select = d.Select
	}
	if t.Unselect <= 0 {
		t.Unselect = d.Unselect
	}
	if t.Quantity <= 0 {
		t.Quantity = d.Quantity
	}
	if t.AddToCart <= 0 {
		t.AddToCart = d.AddToCart
	}
	return t
}

// Deps are the collaborators of one conversation's tool handlers.
type Deps struct {
	Remote    contractx.RemoteSurface
	Catalog   contractx.CatalogGateway
	Events    contractx.OrderEventSink
	Timeouts  Timeouts
	Threshold float64
	Now       func() time.Time
}

type SearchOutput struct {
	Matched bool                  `json:"matched"`
	Summary string                `json:"summary"`
	Results []contractx.Candidate `json:"results"`
	Advice  string                `json:"advice"`
}

type NavigationOutput struct {
	RedirectedTo   string                `json:"redirected_to"`
	ProductID      int64                 `json:"product_id,omitempty"`
	ProductType    contractx.ProductType `json:"product_type,omitempty"`
	ProductDetails string                `json:"product_details,omitempty"`
}

type OrderStartOutput struct {
	Role           handoff.RoleKind      `json:"role"`
	ProductID      int64                 `json:"product_id"`
	ProductType    contractx.ProductType `json:"product_type"`
	ProductName    string                `json:"product_name"`
	ProductDetails string                `json:"product_details"`
}

type SyncOutput struct {
	Summary    string  `json:"summary"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"total_price"`
}

type OptionOutput struct {
	Message  string `json:"message"`
	GroupID  int64  `json:"group_id"`
	OptionID int64  `json:"option_id"`
}

type QuantityOutput struct {
	Message  string `json:"message"`
	Quantity int    `json:"quantity,omitempty"`
	Refused  bool   `json:"refused,omitempty"`
}

type CompleteOutput struct {
	Message     string `json:"message"`
	ProductName string `json:"product_name"`
}

type ExitOutput struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

type togglePayload struct {
	GroupID     int64                 `json:"group_id"`
	OptionID    int64                 `json:"option_id"`
	Action      string                `json:"action"`
	ProductType contractx.ProductType `json:"product_type"`
}

type quantityPayload struct {
	ProductType contractx.ProductType `json:"product_type"`
}

type handlers struct {
	remote    contractx.RemoteSurface
	catalog   contractx.CatalogGateway
	events    contractx.OrderEventSink
	timeouts  Timeouts
	threshold float64
	now       func() time.Time
}

// Table binds every role to its handlers.
func Table(deps Deps) (handoff.Table, error) {
	if deps.Remote == nil {
		return nil, errors.New("remote surface is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("catalog gateway is required")
	}
	h := &handlers{
		remote:    deps.Remote,
		catalog:   deps.Catalog,
		events:    deps.Events,
		timeouts:  deps.Timeouts.withDefaults(),
		threshold: deps.Threshold,
		now:       deps.Now,
	}
	if h.threshold <= 0 {
		h.threshold = DefaultThreshold
	}
	if h.now == nil {
		h.now = time.Now
	}

	bind := func(name string, fn handoff.Handler) handoff.Binding {
		return handoff.Binding{Name: name, Handler: fn}
	}
	return handoff.Table{
		handoff.KindDiscovery: {
			bind(NameSearchProducts, h.searchProducts),
			bind(NameRedirectToProductPage, h.redirectToProductPage),
			bind(NameRedirectToWebsitePage, h.redirectToWebsitePage),
			bind(NameInitiateProductOrder, h.initiateProductOrder),
			bind(NameEndSession, h.endSession),
		},
		handoff.KindFullOrder: {
			bind(NameSyncOrderOptions, h.syncOrderOptions),
			bind(NameSelectOption, h.selectOption),
			bind(NameUnselectOption, h.unselectOption),
			bind(NameIncreaseProductQuantity, h.increaseQuantity),
			bind(NameDecreaseProductQuantity, h.decreaseQuantity),
			bind(NameCompleteOrder, h.completeOrder),
			bind(NameExitOrderingTask, h.exitOrderingTask),
			bind(NameEndSession, h.endSession),
		},
		handoff.KindBasicOrder: {
			bind(NameIncreaseProductQuantity, h.increaseQuantity),
			bind(NameDecreaseProductQuantity, h.decreaseQuantity),
			bind(NameCompleteOrder, h.completeOrder),
			bind(NameExitOrderingTask, h.exitOrderingTask),
			bind(NameEndSession, h.endSession),
		},
		handoff.KindTerminated: nil,
	}, nil
}

func fail(scope *handoff.Scope, tool string, err error) (contractx.ToolResult, error) {
	out := contractx.Failure(tool, err)
	log.Warn().
		Err(err).
		Str("session_id", scope.Session.SessionID).
		Str("tool", tool).
		Str("kind", string(out.Kind)).
		Msg("tool failed")
	return out, nil
}

// wireType is the product type the storefront expects on option and quantity
// calls: variant products are driven through the basic product panel.
func wireType(t contractx.ProductType) contractx.ProductType {
	if t == contractx.ProductVariant {
		return contractx.ProductBasic
	}
	return t
}

// confirmation extracts the free-form message of a mutating call.
func confirmation(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", `""`, "{}":
		return "", contractx.ErrEmptyResponse
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", contractx.ErrEmptyResponse
		}
		return s, nil
	}
	return string(trimmed), nil
}

func (h *handlers) searchProducts(ctx context.Context, scope *handoff.Scope, args map[string]any) (contractx.ToolResult, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return fail(scope, NameSearchProducts, err)
	}

	results, err := h.catalog.Search(ctx, query)
	if err != nil {
		return fail(scope, NameSearchProducts, err)
	}
	scope.Session.ClearPending(h.now())

	out := SearchOutput{
		Summary: catalogx.FormatCandidates(results),
		Results: results,
	}
	switch {
	case len(results) == 0:
		out.Advice = "No products matched. Do not redirect; suggest the user try different keywords."
	case results[0].Score < h.threshold:
		out.Advice = fmt.Sprintf("The best match scored %.2f, below %.2f. Do not redirect; tell the user no close match was found and suggest different keywords.", results[0].Score, h.threshold)
	default:
		out.Matched = true
		out.Advice = "Redirect to result #1 now with redirect_to_product_page, passing its product_id and product_type unchanged."
	}

	log.Debug().
		Str("session_id", scope.Session.SessionID).
		Str("query", query).
		Int("results", len(results)).
		Bool("matched", out.Matched).
		Msg("product search")
	return contractx.Success(NameSearchProducts, out), nil
}

func (h *handlers) redirectToProductPage(ctx context.Context, scope *handoff.Scope, args map[string]any) (contractx.ToolResult, error) {
	rawType, err := stringArg(args, "product_type")
	if err != nil {
		return fail(scope, NameRedirectToProductPage, err)
	}
	productType, err := contractx.ParseProductType(rawType)
	if err != nil {
		return contractx.Failure(NameRedirectToProductPage, err), err
	}
	id, err := intArg(args, "product_id")
	if err != nil {
		return fail(scope, NameRedirectToProductPage, err)
	}
	url, err := stringArg(args, "redirect_url")
	if err != nil {
		return fail(scope, NameRedirectToProductPage, err)
	}

	ref := contractx.ProductRef{ID: id, Type: productType}
	if err := h.remote.Navigate(ctx, url); err != nil {
		return fail(scope, NameRedirectToProductPage, err)
	}
	if err := scope.Session.SetPending(ref, url, h.now()); err != nil {
		return fail(scope, NameRedirectToProductPage, err)
	}

	out := NavigationOutput{RedirectedTo: url, ProductID: id, ProductType: productType}
	if detail, err := h.catalog.FetchDetail(ctx, ref); err != nil {
		log.Warn().Err(err).Str("session_id", scope.Session.SessionID).Str("product", ref.String()).Msg("product detail unavailable after redirect")
	} else {
		out.ProductDetails = detail.Render(scope.Session.Currency)
	}
	return contractx.Success(NameRedirectToProductPage, out), nil
}

func (h *handlers) redirectToWebsitePage(ctx context.Context, scope *handoff.Scope, args map[string]any) (contractx.ToolResult, error) {
	url, err := stringArg(args, "redirect_url")
	if err != nil {
		return fail(scope, NameRedirectToWebsitePage, err)
	}
	if strings.HasPrefix(url, "/") && scope.Session.BaseURL != "" {
		url = scope.Session.BaseURL + url
	}

	if err := h.remote.Navigate(ctx, url); err != nil {
		return fail(scope, NameRedirectToWebsitePage, err)
	}
	return contractx.Success(NameRedirectToWebsitePage, NavigationOutput{RedirectedTo: url}), nil
}

func (h *handlers) initiateProductOrder(ctx context.Context, scope *handoff.Scope, _ map[string]any) (contractx.ToolResult, error) {
	pending, ok := scope.Session.Pending()
	if !ok {
		return fail(scope, NameInitiateProductOrder, contractx.ErrMissingPendingProduct)
	}

	detail, err := h.catalog.FetchDetail(ctx, pending.Ref)
	if err != nil {
		if errors.Is(err, contractx.ErrInvalidProductType) {
			return contractx.Failure(NameInitiateProductOrder, err), err
		}
		return fail(scope, NameInitiateProductOrder, err)
	}

	role, err := handoff.OrderRoleFor(pending.Ref, detail, scope.Session.Currency)
	if err != nil {
		return contractx.Failure(NameInitiateProductOrder, err), err
	}
	if err := scope.Controller.Transition(role); err != nil {
		return fail(scope, NameInitiateProductOrder, err)
	}
	if _, err := scope.Session.TakePending(h.now()); err != nil {
		return fail(scope, NameInitiateProductOrder, err)
	}

	return contractx.Success(NameInitiateProductOrder, OrderStartOutput{
		Role:           role.Kind,
		ProductID:      role.Product.ID,
		ProductType:    role.Product.Type,
		ProductName:    role.ProductName,
		ProductDetails: role.Detail,
	}), nil
}

func (h *handlers) sync(ctx context.Context, scope *handoff.Scope) (*statex.OrderState, error) {
	raw, err := h.remote.Call(ctx, remote.MethodSyncProductOptions, struct{}{}, h.timeouts.Sync)
	if err != nil {
		return nil, err
	}
	st, err := statex.ParseSync(raw, h.now())
	if err != nil {
		return nil, err
	}
	if err := scope.Controller.SetOrder(st); err != nil {
		return nil, err
	}
	return st, nil
}

func (h *handlers) syncOrderOptions(ctx context.Context, scope *handoff.Scope, _ map[string]any) (contractx.ToolResult, error) {
	st, err := h.sync(ctx, scope)
	if err != nil {
		return fail(scope, NameSyncOrderOptions, err)
	}
	return contractx.Success(NameSyncOrderOptions, SyncOutput{
		Summary:    st.Summary(),
		Quantity:   st.Quantity,
		TotalPrice: st.TotalPrice,
	}), nil
}

func (h *handlers) toggle(ctx context.Context, scope *handoff.Scope, tool, action string, timeout time.Duration, args map[string]any) (contractx.ToolResult, error) {
	groupID, err := intArg(args, "group_id")
	if err != nil {
		return fail(scope, tool, err)
	}
	optionID, err := intArg(args, "option_id")
	if err != nil {
		return fail(scope, tool, err)
	}

	raw, err := h.remote.Call(ctx, remote.MethodToggleOptionSelection, togglePayload{
		GroupID:     groupID,
		OptionID:    optionID,
		Action:      action,
		ProductType: wireType(scope.Role.Product.Type),
	}, timeout)
	if err != nil {
		return fail(scope, tool, err)
	}
	msg, err := confirmation(raw)
	if err != nil {
		return fail(scope, tool, fmt.Errorf("%w: toggleOptionSelection", err))
	}
	return contractx.Success(tool, OptionOutput{Message: msg, GroupID: groupID, OptionID: optionID}), nil
}

func (h *handlers) selectOption(ctx context.Context, scope *handoff.Scope, args map[string]any) (contractx.ToolResult, error) {
	return h.toggle(ctx, scope, NameSelectOption, "select", h.timeouts.Select, args)
}

func (h *handlers) unselectOption(ctx context.Context, scope *handoff.Scope, args map[string]any) (contractx.ToolResult, error) {
	return h.toggle(ctx, scope, NameUnselectOption, "unselect", h.timeouts.Unselect, args)
}

func (h *handlers) changeQuantity(ctx context.Context, scope *handoff.Scope, tool, method string) (contractx.ToolResult, error) {
	raw, err := h.remote.Call(ctx, method, quantityPayload{ProductType: wireType(scope.Role.Product.Type)}, h.timeouts.Quantity)
	if err != nil {
		return fail(scope, tool, err)
	}
	msg, err := confirmation(raw)
	if err != nil {
		return fail(scope, tool, fmt.Errorf("%w: %s", err, method))
	}
	return contractx.Success(tool, QuantityOutput{Message: msg}), nil
}

func (h *handlers) increaseQuantity(ctx context.Context, scope *handoff.Scope, _ map[string]any) (contractx.ToolResult, error) {
	return h.changeQuantity(ctx, scope, NameIncreaseProductQuantity, remote.MethodIncreaseProductQuantity)
}

// decreaseQuantity reads the live quantity first so the storefront is never
// asked to go below one. A storefront that does not answer the sync (basic
// product panels may not implement it) gets the decrease directly and enforces
// the floor itself.
func (h *handlers) decreaseQuantity(ctx context.Context, scope *handoff.Scope, _ map[string]any) (contractx.ToolResult, error) {
	st, err := h.sync(ctx, scope)
	if errors.Is(err, contractx.ErrTimeout) || errors.Is(err, contractx.ErrEmptyResponse) {
		log.Warn().
			Err(err).
			Str("session_id", scope.Session.SessionID).
			Msg("quantity sync unanswered, sending decrease without floor check")
		return h.changeQuantity(ctx, scope, NameDecreaseProductQuantity, remote.MethodDecreaseProductQuantity)
	}
	if err != nil {
		return fail(scope, NameDecreaseProductQuantity, err)
	}
	if st.Quantity <= 1 {
		return contractx.Success(NameDecreaseProductQuantity, QuantityOutput{
			Message:  "Quantity is already 1, the minimum. Nothing was changed.",
			Quantity: st.Quantity,
			Refused:  true,
		}), nil
	}
	return h.changeQuantity(ctx, scope, NameDecreaseProductQuantity, remote.MethodDecreaseProductQuantity)
}

func (h *handlers) completeOrder(ctx context.Context, scope *handoff.Scope, _ map[string]any) (contractx.ToolResult, error) {
	raw, err := h.remote.Call(ctx, remote.MethodAddToCart, struct{}{}, h.timeouts.AddToCart)
	if err != nil {
		return fail(scope, NameCompleteOrder, err)
	}
	msg, err := confirmation(raw)
	if err != nil {
		return fail(scope, NameCompleteOrder, fmt.Errorf("%w: addToCart", err))
	}

	quantity := 0
	if st := scope.Controller.Order(); st.Synced() {
		quantity = st.Quantity
	}
	if err := scope.Controller.Transition(handoff.Discovery()); err != nil {
		return fail(scope, NameCompleteOrder, err)
	}
	scope.Session.ClearPending(h.now())

	h.publish(ctx, scope, contractx.OrderEvent{
		Type:        "order.completed",
		SessionID:   scope.Session.SessionID,
		Website:     scope.Session.WebsiteName,
		ProductID:   scope.Role.Product.ID,
		ProductType: scope.Role.Product.Type,
		ProductName: scope.Role.ProductName,
		Quantity:    quantity,
		Confirm:     msg,
		OccurredAt:  h.now().UTC().Format(time.RFC3339),
	})

	return contractx.Success(NameCompleteOrder, CompleteOutput{Message: msg, ProductName: scope.Role.ProductName}), nil
}

// publish never fails the tool call: the cart is already updated.
func (h *handlers) publish(ctx context.Context, scope *handoff.Scope, evt contractx.OrderEvent) {
	if h.events == nil {
		return
	}
	if err := h.events.OrderCompleted(ctx, evt); err != nil {
		log.Error().Err(err).Str("session_id", scope.Session.SessionID).Int64("product_id", evt.ProductID).Msg("publish order event failed")
	}
}

func (h *handlers) exitOrderingTask(_ context.Context, scope *handoff.Scope, args map[string]any) (contractx.ToolResult, error) {
	reason, _ := stringArg(args, "exit_reason")
	if err := scope.Controller.Transition(handoff.Discovery()); err != nil {
		return fail(scope, NameExitOrderingTask, err)
	}
	return contractx.Success(NameExitOrderingTask, ExitOutput{
		Message: fmt.Sprintf("User exited customization for %s without adding to cart.", scope.Role.ProductName),
		Reason:  reason,
	}), nil
}

func (h *handlers) endSession(_ context.Context, scope *handoff.Scope, _ map[string]any) (contractx.ToolResult, error) {
	if err := scope.Controller.Transition(handoff.Terminated()); err != nil {
		return fail(scope, NameEndSession, err)
	}
	return contractx.Success(NameEndSession, ExitOutput{Message: "Session is ending. Say a short goodbye."}), nil
}
