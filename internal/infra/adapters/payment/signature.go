package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignatureHeader is where Paystack puts the webhook HMAC.
const SignatureHeader = "x-paystack-signature"

// Sign returns the hex HMAC-SHA512 of raw under secret.
func Sign(secret string, raw []byte) string {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature compares header against the HMAC of the raw body in constant
// time. raw must be the bytes as received; re-encoded JSON will not match.
func VerifySignature(secret string, raw []byte, header string) bool {
	if secret == "" || header == "" || len(raw) == 0 {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, raw))
	return hmac.Equal(got, want)
}
