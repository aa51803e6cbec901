// Package gateway implements the checksum handshake used by the hosted payment page.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Environments understood by the gateway.
const (
	EnvProduction = "PROD"
	EnvTest       = "TEST"
)

// ChecksumField is the parameter carrying the signature. It is left out of the signed
// string entirely, not signed as an empty "CHECKSUMHASH=" pair.
const ChecksumField = "CHECKSUMHASH"

const (
	processURLProduction = "https://securegw.paytm.in/order/process"
	processURLTest       = "https://securegw-stage.paytm.in/order/process"
)

// Checksum returns the lowercase sha256 hex of the key-sorted k=v&... string followed by the merchant key.
// ChecksumField is skipped when present, so initiation and callback sign the same way.
func Checksum(params map[string]string, merchantKey string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == ChecksumField {
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
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString(merchantKey)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify compares received against the expected checksum byte for byte in constant time.
// Case is significant: an upper-cased hex digit is a mismatch.
func Verify(params map[string]string, merchantKey, received string) bool {
	if received == "" {
		return false
	}
	expected := Checksum(params, merchantKey)
	return hmac.Equal([]byte(expected), []byte(received))
}

// ProcessURL returns the hosted payment endpoint for env. Anything but PROD uses staging.
func ProcessURL(env string) string {
	if strings.EqualFold(env, EnvProduction) {
		return processURLProduction
	}
	return processURLTest
}

// Website returns the WEBSITE parameter for env.
func Website(env string) string {
	if strings.EqualFold(env, EnvProduction) {
		return "DEFAULT"
	}
	return "WEBSTAGING"
}

// NormalizeEnv maps free-form input onto PROD or TEST.
func NormalizeEnv(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), EnvProduction) {
		return EnvProduction
	}
	return EnvTest
}
