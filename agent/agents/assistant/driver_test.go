package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/handoff"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/remote"
	statex "github.com/tanpawarit/Chative-Voice-Commerce/agent/state"
	toolx "github.com/tanpawarit/Chative-Voice-Commerce/agent/tool"
)

type modelCall struct {
	tools []string
	input []*schema.Message
}

// scriptedModel replays responses in order and records what each call saw.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	idx       int
	calls     []modelCall
	repeat    *schema.Message
}

func (s *scriptedModel) next(tools []string, input []*schema.Message) (*schema.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, modelCall{tools: tools, input: input})
	if s.repeat != nil {
		return s.repeat, nil
	}
	if s.idx >= len(s.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := s.responses[s.idx]
	s.idx++
	return msg, nil
}

func (s *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	return s.next(nil, input)
}

func (s *scriptedModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (s *scriptedModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return &boundModel{parent: s, tools: names}, nil
}

type boundModel struct {
	parent *scriptedModel
	tools  []string
}

func (b *boundModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	return b.parent.next(b.tools, input)
}

func (b *boundModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (b *boundModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return b.parent.WithTools(tools)
}

func toolCall(id, name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

func text(content string) *schema.Message {
	return schema.AssistantMessage(content, nil)
}

type shopFront struct {
	mu      sync.Mutex
	methods []string
}

func (s *shopFront) Call(_ context.Context, method string, _ any, _ time.Duration) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods = append(s.methods, method)
	if method == remote.MethodAddToCart {
		return json.RawMessage(`"Classic Burger added to cart"`), nil
	}
	return json.RawMessage(`"ok"`), nil
}

func (s *shopFront) Navigate(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods = append(s.methods, remote.MethodRedirectToPage)
	return nil
}

type burgerCatalog struct{}

func (burgerCatalog) Search(context.Context, string) ([]contractx.Candidate, error) {
	return []contractx.Candidate{{
		ID: 5, Type: contractx.ProductBasic, Document: "Classic Burger - beef patty",
		RedirectURL: "https://shop.example.com/product/classic-burger", Score: 0.85, Rank: 1,
	}}, nil
}

func (burgerCatalog) FetchDetail(_ context.Context, ref contractx.ProductRef) (contractx.ProductDetail, error) {
	return burgerDetail{ref: ref}, nil
}

type burgerDetail struct{ ref contractx.ProductRef }

func (d burgerDetail) Ref() contractx.ProductRef { return d.ref }
func (d burgerDetail) Name() string              { return "Classic Burger" }
func (d burgerDetail) Render(currency string) string {
	return "# Classic Burger\n- Price: 8.50 " + currency
}

func newController(t *testing.T) (*handoff.Controller, *shopFront) {
	t.Helper()

	session, err := statex.NewSessionState("s1", statex.Metadata{WebsiteName: "Burger Palace", Host: "shop.example.com", Mode: "text"}, time.Now())
	if err != nil {
		t.Fatalf("NewSessionState() error = %v", err)
	}
	front := &shopFront{}
	table, err := toolx.Table(toolx.Deps{Remote: front, Catalog: burgerCatalog{}})
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	ctrl, err := handoff.NewController(session, table)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return ctrl, front
}

func newDriver(t *testing.T, m einomodel.ToolCallingChatModel, maxSteps int) *Driver {
	t.Helper()
	d, err := NewDriver(StaticModels(m), nil, nil, maxSteps)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	return d
}

func lastSystem(input []*schema.Message) string {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i].Role == schema.System {
			return input[i].Content
		}
	}
	return ""
}

func TestBurgerConversationAcrossHandoffs(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []*schema.Message{
		text("Hi! Welcome to Burger Palace. What are you craving?"),
		toolCall("c1", toolx.NameSearchProducts, `{"query":"burger"}`),
		toolCall("c2", toolx.NameRedirectToProductPage, `{"redirect_url":"https://shop.example.com/product/classic-burger","product_id":5,"product_type":"basic"}`),
		text("Here is our Classic Burger. What do you think?"),
		toolCall("c3", toolx.NameInitiateProductOrder, `{}`),
		text("Great pick! The Classic Burger is 8.50. Just one?"),
		toolCall("c4", toolx.NameCompleteOrder, `{}`),
		text("Done, it's in your cart. Anything else?"),
	}}
	ctrl, front := newController(t)
	d := newDriver(t, model, 0)
	ctx := context.Background()

	greeting, ran, err := d.Entry(ctx, ctrl)
	if err != nil || !ran {
		t.Fatalf("Entry() = %v, %v", ran, err)
	}
	if !strings.Contains(lastSystem(model.calls[0].input), "Greet the user") {
		t.Fatalf("greeting instruction missing: %q", lastSystem(model.calls[0].input))
	}
	if greeting.Text == "" {
		t.Fatal("greeting is empty")
	}
	if _, ran, _ := d.Entry(ctx, ctrl); ran {
		t.Fatal("entry must only run once")
	}

	found, err := d.Turn(ctx, ctrl, "I want a burger")
	if err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	if strings.Join(found.ToolCalls, ",") != "search_products,redirect_to_product_page" {
		t.Fatalf("tool calls = %v", found.ToolCalls)
	}
	if got := strings.Join(model.calls[1].tools, ","); got != "search_products,redirect_to_product_page,redirect_to_website_page,initiate_product_order,end_session" {
		t.Fatalf("discovery tools bound = %s", got)
	}

	ordered, err := d.Turn(ctx, ctrl, "yes, that one")
	if err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	if ordered.Role.Kind != handoff.KindBasicOrder {
		t.Fatalf("role after initiate = %s", ordered.Role.Kind)
	}
	orderCall := model.calls[5]
	if got := strings.Join(orderCall.tools, ","); got != "increase_product_quantity,decrease_product_quantity,complete_order,exit_ordering_task,end_session" {
		t.Fatalf("order tools bound = %s", got)
	}
	if system := orderCall.input[0].Content; !strings.Contains(system, "helping the user order Classic Burger") || !strings.Contains(system, "- Price: 8.50 $") {
		t.Fatalf("order instructions:\n%s", system)
	}
	if !strings.Contains(lastSystem(orderCall.input), "The user chose Classic Burger") {
		t.Fatalf("order entry instruction missing: %q", lastSystem(orderCall.input))
	}
	sawEarlierTurn := false
	for _, msg := range orderCall.input {
		if msg.Role == schema.User && msg.Content == "I want a burger" {
			sawEarlierTurn = true
		}
	}
	if !sawEarlierTurn {
		t.Fatal("order role must see the discovery dialogue")
	}

	done, err := d.Turn(ctx, ctrl, "add it to my cart")
	if err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	if done.Role.Kind != handoff.KindDiscovery {
		t.Fatalf("role after complete = %s", done.Role.Kind)
	}
	if !strings.Contains(lastSystem(model.calls[7].input), "previous product is finished") {
		t.Fatalf("resume instruction missing: %q", lastSystem(model.calls[7].input))
	}
	if front.methods[len(front.methods)-1] != remote.MethodAddToCart {
		t.Fatalf("storefront calls = %v", front.methods)
	}

	var toolMessages int
	for _, msg := range ctrl.History().Messages() {
		if msg.Role == schema.Tool {
			toolMessages++
			if msg.ToolCallID == "" {
				t.Fatal("tool message lacks its call id")
			}
		}
	}
	if toolMessages != 4 {
		t.Fatalf("tool messages in history = %d, want 4", toolMessages)
	}
}

func TestEndSessionSaysFarewellWithoutTools(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []*schema.Message{
		toolCall("c1", toolx.NameEndSession, `{}`),
		text("Bye, thanks for visiting!"),
	}}
	ctrl, _ := newController(t)
	ctrl.TakeEntry()
	d := newDriver(t, model, 0)

	reply, err := d.Turn(context.Background(), ctrl, "that's all, bye")
	if err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	if !reply.Terminated() || reply.Text != "Bye, thanks for visiting!" {
		t.Fatalf("reply = %#v", reply)
	}
	last := model.calls[len(model.calls)-1]
	if len(last.tools) != 0 {
		t.Fatalf("terminated role must not bind tools, got %v", last.tools)
	}
	if !strings.Contains(lastSystem(last.input), "goodbye") {
		t.Fatalf("farewell instruction missing: %q", lastSystem(last.input))
	}
}

func TestTurnStopsAtStepLimit(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{repeat: toolCall("loop", toolx.NameSearchProducts, `{"query":"burger"}`)}
	ctrl, _ := newController(t)
	ctrl.TakeEntry()
	d := newDriver(t, model, 3)

	reply, err := d.Turn(context.Background(), ctrl, "burger")
	if !errors.Is(err, ErrStepLimit) {
		t.Fatalf("expected ErrStepLimit, got %v", err)
	}
	if len(model.calls) != 3 || reply.Steps != 3 {
		t.Fatalf("calls = %d, steps = %d", len(model.calls), reply.Steps)
	}
}

func TestBadToolInputsAreReportedToModel(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{
			{ID: "c1", Function: schema.FunctionCall{Name: toolx.NameSearchProducts, Arguments: `{not json`}},
			{ID: "c2", Function: schema.FunctionCall{Name: toolx.NameCompleteOrder, Arguments: `{}`}},
		}),
		text("Sorry, could you repeat that?"),
	}}
	ctrl, front := newController(t)
	ctrl.TakeEntry()
	d := newDriver(t, model, 0)

	if _, err := d.Turn(context.Background(), ctrl, "hmm"); err != nil {
		t.Fatalf("Turn() error = %v", err)
	}

	results := map[string]contractx.ToolResult{}
	for _, msg := range ctrl.History().Messages() {
		if msg.Role != schema.Tool {
			continue
		}
		var res contractx.ToolResult
		if err := json.Unmarshal([]byte(msg.Content), &res); err != nil {
			t.Fatalf("tool message is not a result: %v", err)
		}
		results[msg.ToolCallID] = res
	}
	if results["c1"].Kind != contractx.KindValidation {
		t.Fatalf("c1 kind = %q", results["c1"].Kind)
	}
	if results["c2"].Kind != contractx.KindToolNotAllowed {
		t.Fatalf("c2 kind = %q", results["c2"].Kind)
	}
	if len(front.methods) != 0 {
		t.Fatalf("no storefront call expected, got %v", front.methods)
	}
}

func TestTurnRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	ctrl, _ := newController(t)
	d := newDriver(t, &scriptedModel{}, 0)
	if _, err := d.Turn(context.Background(), ctrl, "   "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if ctrl.History().Len() != 0 {
		t.Fatal("empty input must not reach history")
	}
}

func TestEntryInstructionOnlyPrecedesFirstOrderStep(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []*schema.Message{
		toolCall("c1", toolx.NameRedirectToProductPage, `{"redirect_url":"https://shop.example.com/product/classic-burger","product_id":5,"product_type":"basic"}`),
		toolCall("c2", toolx.NameInitiateProductOrder, `{}`),
		toolCall("c3", toolx.NameIncreaseProductQuantity, `{}`),
		text("Two Classic Burgers it is."),
	}}
	ctrl, _ := newController(t)
	ctrl.TakeEntry()
	d := newDriver(t, model, 0)

	if _, err := d.Turn(context.Background(), ctrl, "two of the classic burger please"); err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	if len(model.calls) != 4 {
		t.Fatalf("model calls = %d, want 4", len(model.calls))
	}
	if !strings.Contains(lastSystem(model.calls[2].input), "The user chose Classic Burger") {
		t.Fatalf("order entry instruction missing: %q", lastSystem(model.calls[2].input))
	}
	for _, msg := range model.calls[3].input {
		if msg.Role == schema.System && strings.Contains(msg.Content, "The user chose") {
			t.Fatalf("entry instruction repeated after the tool step: %q", msg.Content)
		}
	}
}
