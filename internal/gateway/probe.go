package gateway

import (
	"encoding/json"
	"strconv"
	"strings"
)

// The provider's response schema is not consistent across response types:
// the same field may appear under method.card, paymentMethod.card or a
// top-level card object depending on which API produced the document.
// Each probe is a declarative ordered candidate list; the first non-blank
// match wins.
var (
	statusPaths     = []string{"status", "payment.status", "transaction.status"}
	txIDPaths       = []string{"transactionId", "txId", "pgTxId", "transaction.id"}
	paymentIDPaths  = []string{"id", "paymentId", "merchantUid", "payment.id"}
	pgPaths         = []string{"channel.pgProvider", "pgProvider", "pg"}
	brandPaths      = []string{"method.card.brand", "paymentMethod.card.brand", "card.brand"}
	binPaths        = []string{"method.card.bin", "paymentMethod.card.bin", "card.bin"}
	last4Paths      = []string{"method.card.last4", "paymentMethod.card.last4", "card.last4", "card.number_last4"}
	billingKeyPaths = []string{"billingKey", "method.billingKey", "paymentMethod.billingKey"}
	receiptPaths    = []string{"receiptUrl", "receipt.url", "payment.receiptUrl"}
	failMsgPaths    = []string{"failure.message", "failure.reason", "error.message", "message"}
)

func decodeDoc(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return doc
}

// firstString walks each dotted path in order and returns the first
// non-blank string value.
func firstString(doc map[string]any, paths []string) string {
	for _, path := range paths {
		if value := stringAtPath(doc, path); value != "" {
			return value
		}
	}
	return ""
}

func stringAtPath(doc map[string]any, path string) string {
	if doc == nil {
		return ""
	}
	current := any(doc)
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = node[segment]
		if !ok {
			return ""
		}
	}
	switch typed := current.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case float64:
		// identifiers occasionally arrive as numbers
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return ""
	}
}
