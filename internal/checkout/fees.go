package checkout

import "github.com/lfmorais/unimarket/internal/domain"

// FeePolicy computes the fee breakdown for a session. Fees are calculated
// per seller group so that the session totals always equal the sum of the
// orders a confirm produces.
type FeePolicy struct {
	PlatformFeeBps         int
	CampusDeliveryFeeCents int64
}

func (p FeePolicy) deliveryFee(method domain.DeliveryMethod) int64 {
	if method == domain.DeliveryCampus {
		return p.CampusDeliveryFeeCents
	}
	return 0
}

// PriceGroups fills in the fee fields of each seller group for the chosen
// delivery method. The platform fee is floored per group.
func (p FeePolicy) PriceGroups(groups []domain.SellerGroup, method domain.DeliveryMethod) []domain.SellerGroup {
	for i := range groups {
		g := &groups[i]
		g.DeliveryFeeCents = p.deliveryFee(method)
		g.PlatformFeeCents = g.SubtotalCents * int64(p.PlatformFeeBps) / 10000
		g.TotalCents = g.SubtotalCents + g.DeliveryFeeCents + g.PlatformFeeCents
	}
	return groups
}

// Reprice recomputes the session-level amounts from its seller groups.
func (p FeePolicy) Reprice(sess *domain.CheckoutSession) {
	groups := p.PriceGroups(sess.SplitBySeller(), sess.DeliveryMethod)

	sess.SubtotalCents = 0
	sess.DeliveryFeeCents = 0
	sess.PlatformFeeCents = 0
	sess.TotalCents = 0
	for _, g := range groups {
		sess.SubtotalCents += g.SubtotalCents
		sess.DeliveryFeeCents += g.DeliveryFeeCents
		sess.PlatformFeeCents += g.PlatformFeeCents
		sess.TotalCents += g.TotalCents
	}
}
