package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ComputeSignature returns the lowercase hex encoded HMAC-SHA256 signature for body.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares a received signature with a freshly computed one.
func VerifySignature(secret string, body []byte, candidate string) bool {
	expected := ComputeSignature(secret, body)
	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	candidateBytes, err := hex.DecodeString(candidate)
	if err != nil {
		return false
	}
	return hmac.Equal(expectedBytes, candidateBytes)
}

// SignValue appends an HMAC signature to a cookie value: "<value>.<sig>".
func SignValue(secret, value string) string {
	return value + "." + ComputeSignature(secret, []byte(value))
}

// VerifyValue returns the original value of a signed cookie when its
// signature matches.
func VerifyValue(secret, signed string) (string, bool) {
	i := strings.LastIndexByte(signed, '.')
	if i <= 0 || i == len(signed)-1 {
		return "", false
	}
	value, sig := signed[:i], signed[i+1:]
	if !VerifySignature(secret, []byte(value), sig) {
		return "", false
	}
	return value, true
}
