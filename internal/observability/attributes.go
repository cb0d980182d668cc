package observability

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrOp      = "op"
	attrSuccess = "success"
)

func opAttr(op string) attribute.KeyValue {
	return attribute.String(attrOp, normalizeOp(op))
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

// normalizeOp strips the package qualifier so the op label stays a
// small closed set ("jobclient.status" -> "status").
func normalizeOp(op string) string {
	if i := strings.LastIndexByte(op, '.'); i >= 0 {
		return op[i+1:]
	}
	return op
}
