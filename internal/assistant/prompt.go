package assistant

import (
	"fmt"
	"strings"

	"voicero/internal/sessions"
)

// historyLimit is how many recent messages are replayed to the model.
const historyLimit = 20

func systemPrompt(shop string) string {
	return fmt.Sprintf(`You are the shopping assistant for the store %s.
Answer briefly and helpfully. You can help shoppers find products and manage their orders.

OUTPUT: valid JSON ONLY, exactly this shape:
{"answer": "...", "action": "...", "action_context": {...}}

ACTIONS:
- none: just answer.
- redirect: action_context {"url": "..."} to open a store page.
- scroll / highlight_text: action_context {"text": "..."} to point at content on the current page.
- login / logout / contact: open the account or contact form.
- verify_order, order_details, cancel, return, exchange, refund: order actions.
  action_context {"order_number": "1001", "email": "...", "reason": "...", "items": ["..."]}
  Always ask for the order number and the email used at checkout before an order action.
  For returns, include "reason" only if the shopper gave one.

Never invent order details; the order action result will be shown to the shopper.`, shop)
}

// history turns the current thread into alternating user/assistant turns ending on a user turn.
func history(sess *sessions.Session) []ChatMessage {
	t := sess.CurrentThread()
	if t == nil {
		return nil
	}
	msgs := t.Messages
	if len(msgs) > historyLimit {
		msgs = msgs[len(msgs)-historyLimit:]
	}

	var out []ChatMessage
	for _, m := range msgs {
		role := "user"
		if m.Role == sessions.RoleAssistant {
			role = "assistant"
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n" + m.Content
			continue
		}
		out = append(out, ChatMessage{Role: role, Content: m.Content})
	}
	// the model must see a user turn first
	for len(out) > 0 && out[0].Role != "user" {
		out = out[1:]
	}
	return out
}
