package assistant

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"voicero/internal/apperr"
	"voicero/internal/orders"
	"voicero/internal/sessions"

	"go.uber.org/zap"
)

type Action string

const (
	ActionNone          Action = "none"
	ActionRedirect      Action = "redirect"
	ActionScroll        Action = "scroll"
	ActionHighlightText Action = "highlight_text"
	ActionLogin         Action = "login"
	ActionLogout        Action = "logout"
	ActionContact       Action = "contact"
)

// Reply is what the model returns and what the widget receives.
type Reply struct {
	Answer        string         `json:"answer"`
	Action        Action         `json:"action"`
	ActionContext map[string]any `json:"action_context,omitempty"`
}

type TurnResult struct {
	Reply
	// OrderResult is set when the action ran through the order resolver.
	OrderResult *orders.Response  `json:"order_result,omitempty"`
	Session     *sessions.Session `json:"session"`
}

type OrderResolver interface {
	Resolve(ctx context.Context, req orders.Request) (orders.Response, error)
}

type SessionStore interface {
	AppendMessage(ctx context.Context, shop, id string, role sessions.Role, content, action string) (*sessions.Session, error)
	SetPendingReturn(ctx context.Context, shop, id string, p *sessions.PendingReturn) (*sessions.Session, error)
}

type Assistant struct {
	llm      LLM
	sessions SessionStore
	logger   *zap.Logger
	now      func() time.Time
}

func New(llm LLM, store SessionStore, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{llm: llm, sessions: store, logger: logger, now: time.Now}
}

type turn struct {
	shop     string
	sess     *sessions.Session
	reply    Reply
	resolver OrderResolver
	result   *orders.Response
}

type handler func(a *Assistant, ctx context.Context, t *turn) error

var dispatch = map[Action]handler{
	ActionNone:          (*Assistant).passThrough,
	ActionRedirect:      (*Assistant).passThrough,
	ActionScroll:        (*Assistant).passThrough,
	ActionHighlightText: (*Assistant).passThrough,
	ActionLogin:         (*Assistant).passThrough,
	ActionLogout:        (*Assistant).passThrough,
	ActionContact:       (*Assistant).passThrough,

	Action(orders.ActionVerifyOrder):  (*Assistant).orderAction,
	Action(orders.ActionOrderDetails): (*Assistant).orderAction,
	Action(orders.ActionCancel):       (*Assistant).orderAction,
	Action(orders.ActionReturn):       (*Assistant).orderAction,
	Action(orders.ActionReturnOrder):  (*Assistant).orderAction,
	Action(orders.ActionExchange):     (*Assistant).orderAction,
	Action(orders.ActionRefund):       (*Assistant).orderAction,
}

// Turn records the shopper's message, asks the model for a reply and runs its action.
// resolver may be nil when the shop has no order access; order actions then just answer.
func (a *Assistant) Turn(ctx context.Context, shop, sessionID, message string, resolver OrderResolver) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &apperr.Validation{Messages: []string{"Message is required."}}
	}

	sess, err := a.sessions.AppendMessage(ctx, shop, sessionID, sessions.RoleUser, message, "")
	if err != nil {
		return nil, err
	}

	text, err := a.llm.Complete(ctx, systemPrompt(shop), history(sess))
	if err != nil {
		return nil, err
	}

	t := &turn{shop: shop, sess: sess, reply: parseReply(text), resolver: resolver}

	h, ok := dispatch[t.reply.Action]
	if !ok {
		a.logger.Warn("unknown assistant action",
			zap.String("shop", shop),
			zap.String("action", string(t.reply.Action)),
		)
		t.reply.Action = ActionNone
		t.reply.ActionContext = nil
		h = (*Assistant).passThrough
	}
	if err := h(a, ctx, t); err != nil {
		return nil, err
	}

	stored, err := a.sessions.AppendMessage(ctx, shop, sessionID, sessions.RoleAssistant, t.reply.Answer, string(t.reply.Action))
	if err != nil {
		return nil, err
	}

	return &TurnResult{Reply: t.reply, OrderResult: t.result, Session: stored}, nil
}

// parseReply accepts the model's JSON; anything else is shown as a plain answer.
func parseReply(text string) Reply {
	var r Reply
	if js := extractFirstJSONObject(text); js != "" && json.Unmarshal([]byte(js), &r) == nil {
		r.Action = Action(strings.ToLower(strings.TrimSpace(string(r.Action))))
		if r.Action == "" {
			r.Action = ActionNone
		}
		return r
	}
	return Reply{Answer: text, Action: ActionNone}
}

func (a *Assistant) passThrough(_ context.Context, _ *turn) error {
	return nil
}

func (a *Assistant) orderAction(ctx context.Context, t *turn) error {
	if t.resolver == nil {
		t.reply.Answer = "I can't look up orders for this store right now. Please contact the store directly."
		t.reply.Action = ActionContact
		return nil
	}

	req, err := orderRequest(t.reply.Action, t.reply.ActionContext)
	if err != nil {
		a.logger.Warn("bad order action context", zap.String("shop", t.shop), zap.Error(err))
		t.reply.Action = ActionNone
		return nil
	}

	isReturn := req.Action == orders.ActionReturn || req.Action == orders.ActionReturnOrder
	pending := t.sess.ActivePendingReturn(a.now())
	// A reason given after we asked for one completes the stored return.
	if isReturn && pending != nil && req.Reason != "" && req.OrderRef() == "" {
		req.OrderNumber = pending.OrderNumber
		if req.Email == "" {
			req.Email = pending.Email
		}
	}

	resp, err := t.resolver.Resolve(ctx, req)
	if err != nil {
		return err
	}
	t.result = &resp

	switch {
	case isReturn && resp.NeedReason:
		t.sess, err = a.sessions.SetPendingReturn(ctx, t.shop, t.sess.ID, &sessions.PendingReturn{
			OrderNumber: req.OrderRef(),
			Email:       req.Email,
		})
	case isReturn && resp.Success && pending != nil:
		t.sess, err = a.sessions.SetPendingReturn(ctx, t.shop, t.sess.ID, nil)
	}
	if err != nil {
		return err
	}

	if resp.Success && resp.Message != "" {
		t.reply.Answer = resp.Message
	} else if !resp.Success {
		t.reply.Answer = firstNonEmpty(resp.Error, resp.Message, t.reply.Answer)
	}
	return nil
}

// orderRequest decodes action_context through orders.Request so field aliases are handled in one place.
func orderRequest(action Action, actx map[string]any) (orders.Request, error) {
	fields := map[string]any{}
	for k, v := range actx {
		fields[k] = v
	}
	fields["action"] = string(action)

	b, err := json.Marshal(fields)
	if err != nil {
		return orders.Request{}, err
	}
	var req orders.Request
	if err := json.Unmarshal(b, &req); err != nil {
		return orders.Request{}, err
	}
	return req, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
