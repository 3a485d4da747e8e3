package quotes

import (
	"github.com/lfmorais/unimarket/internal/auth"
	"github.com/lfmorais/unimarket/internal/domain"
)

// Action is something done to a quote request. Expire and mark_paid are
// system actions; everything else arrives through the API.
type Action string

const (
	ActionRespond  Action = "respond"
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionExpire   Action = "expire"
	ActionMarkPaid Action = "mark_paid"
)

// transitions is the single source of truth for quote lifecycle legality.
// Terminal statuses have no entry, so every action on them fails.
var transitions = map[domain.QuoteStatus]map[Action]domain.QuoteStatus{
	domain.QuotePending: {
		ActionRespond: domain.QuoteQuoted,
		ActionCancel:  domain.QuoteCancelled,
		ActionExpire:  domain.QuoteExpired,
	},
	domain.QuoteQuoted: {
		ActionAccept: domain.QuoteAccepted,
		ActionReject: domain.QuoteRejected,
		ActionCancel: domain.QuoteCancelled,
		ActionExpire: domain.QuoteExpired,
	},
	domain.QuoteAccepted: {
		ActionMarkPaid: domain.QuotePaid,
		ActionCancel:   domain.QuoteCancelled,
	},
	domain.QuotePaid: {
		ActionStart: domain.QuoteInProgress,
	},
	domain.QuoteInProgress: {
		ActionComplete: domain.QuoteCompleted,
	},
}

func nextStatus(from domain.QuoteStatus, action Action) (domain.QuoteStatus, bool) {
	to, ok := transitions[from][action]
	return to, ok
}

// permitted is the one place role gating lives: sellers respond and
// deliver, buyers decide, either party (or an admin) may cancel. System
// actions are never permitted to a caller.
func permitted(actor auth.Identity, q *domain.QuoteRequest, action Action) bool {
	switch action {
	case ActionRespond, ActionStart, ActionComplete:
		return actor.UserID == q.SellerID
	case ActionAccept, ActionReject:
		return actor.UserID == q.BuyerID
	case ActionCancel:
		return actor.Admin() || actor.UserID == q.BuyerID || actor.UserID == q.SellerID
	default:
		return false
	}
}

func invalidTransition(q *domain.QuoteRequest, action Action) error {
	return domain.Conflict(domain.CodeInvalidTransition,
		"cannot %s a quote request in status %s", action, q.Status)
}
