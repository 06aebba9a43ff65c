package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// Sign returns the lowercase hex HMAC-SHA512 of data keyed by secret.
func Sign(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over params without the hash fields and compares it
// in constant time with the received vnp_SecureHash.
func Verify(secret string, params Params) bool {
	received := strings.ToLower(strings.TrimSpace(params.Get(ParamSecureHash)))
	if received == "" || secret == "" {
		return false
	}
	expected := Sign(secret, params.without(ParamSecureHash, ParamSecureHashType).Canonicalize())
	return hmac.Equal([]byte(expected), []byte(received))
}
