package exchanges

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureType is reported in the SIGN-TYPE header.
const SignatureType = "2" // HMAC-SHA256

// Sign produces the request signature shared by every adapter:
// HMAC-SHA256 over timestamp + apiKey + recvWindow + queryString, keyed with
// the credential secret, hex encoded.
func Sign(secret, timestamp, apiKey, recvWindow, queryString string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + apiKey + recvWindow + queryString))
	return hex.EncodeToString(mac.Sum(nil))
}
