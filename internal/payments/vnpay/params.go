// Package vnpay builds signed VNPAY payment URLs and verifies gateway callbacks.
package vnpay

import (
	"net/url"
	"sort"
	"strings"
)

const (
	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
	ParamTxnRef         = "vnp_TxnRef"
	ParamAmount         = "vnp_Amount"
	ParamResponseCode   = "vnp_ResponseCode"
	ParamTransactionNo  = "vnp_TransactionNo"
	ParamBankCode       = "vnp_BankCode"
	ParamPayDate        = "vnp_PayDate"
)

// Params is the flat key/value set exchanged with the gateway. Its contents are owned by
// the gateway and are not interpreted beyond the signature.
type Params map[string]string

// FromValues keeps the first value of each query parameter.
func FromValues(values url.Values) Params {
	params := make(Params, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		params[key] = vals[0]
	}
	return params
}

func (p Params) Get(key string) string {
	return p[key]
}

// without returns a copy of p minus the listed keys.
func (p Params) without(keys ...string) Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Canonicalize renders k=v pairs joined by '&' in ascending key order. Empty values are
// skipped and values are form encoded.
func (p Params) Canonicalize() string {
	return p.join(false)
}

// Query renders the same pairs as Canonicalize with the keys encoded as well.
func (p Params) Query() string {
	return p.join(true)
}

func (p Params) join(encodeKeys bool) string {
	keys := make([]string, 0, len(p))
	for k, v := range p {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		if encodeKeys {
			b.WriteString(formEncode(k))
		} else {
			b.WriteString(k)
		}
		b.WriteByte('=')
		b.WriteString(formEncode(p[k]))
	}
	return b.String()
}

// formEncode matches the gateway's reference encoder: space becomes '+', '*' stays
// literal and '~' is escaped.
func formEncode(v string) string {
	escaped := url.QueryEscape(v)
	if !strings.ContainsAny(escaped, "~%") {
		return escaped
	}
	escaped = strings.ReplaceAll(escaped, "%2A", "*")
	return strings.ReplaceAll(escaped, "~", "%7E")
}
