package gateway

import (
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
)

// ExtractCardMeta parses card metadata out of a raw gateway response. Pure
// parsing, no I/O. Returns nil when the document carries no card fields.
func ExtractCardMeta(raw []byte) *paymentdomain.CardMeta {
	doc := decodeDoc(raw)
	if doc == nil {
		return nil
	}

	meta := paymentdomain.CardMeta{
		PG:         firstString(doc, pgPaths),
		Brand:      firstString(doc, brandPaths),
		Bin:        firstString(doc, binPaths),
		Last4:      firstString(doc, last4Paths),
		BillingKey: firstString(doc, billingKeyPaths),
	}
	if meta.PG == "" && meta.Brand == "" && meta.Bin == "" && meta.Last4 == "" && meta.BillingKey == "" {
		return nil
	}
	return &meta
}
