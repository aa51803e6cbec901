package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callbackParams() map[string]string {
	return map[string]string{
		"ORDERID":   "0f3c9a",
		"TXNID":     "TXN_1700000000000_abc123xyz",
		"TXNAMOUNT": "12.40",
		"STATUS":    "TXN_SUCCESS",
	}
}

func TestChecksumSortsKeysAndAppendsMerchantKey(t *testing.T) {
	sum := sha256.Sum256([]byte("ORDERID=0f3c9a&STATUS=TXN_SUCCESS&TXNAMOUNT=12.40&TXNID=TXN_1700000000000_abc123xyz" + "k3y"))
	assert.Equal(t, hex.EncodeToString(sum[:]), Checksum(callbackParams(), "k3y"))
}

func TestChecksumIgnoresChecksumField(t *testing.T) {
	params := callbackParams()
	before := Checksum(params, "k3y")
	params[ChecksumField] = "anything"
	assert.Equal(t, before, Checksum(params, "k3y"))
}

func TestVerify(t *testing.T) {
	params := callbackParams()
	signature := Checksum(params, "k3y")
	require.True(t, Verify(params, "k3y", signature))

	t.Run("tampered field", func(t *testing.T) {
		tampered := callbackParams()
		tampered["TXNAMOUNT"] = "1.00"
		assert.False(t, Verify(tampered, "k3y", signature))
	})
	t.Run("rotated key", func(t *testing.T) {
		assert.False(t, Verify(params, "new-key", signature))
	})
	t.Run("one character case flipped", func(t *testing.T) {
		assert.False(t, Verify(params, "k3y", flipFirstLetter(signature)))
	})
	t.Run("fully upper-cased", func(t *testing.T) {
		assert.False(t, Verify(params, "k3y", strings.ToUpper(signature)))
	})
	t.Run("empty signature", func(t *testing.T) {
		assert.False(t, Verify(params, "k3y", ""))
	})
}

// flipFirstLetter upper-cases the first hex letter of a lowercase signature.
func flipFirstLetter(sig string) string {
	for i, r := range sig {
		if r >= 'a' && r <= 'f' {
			return sig[:i] + strings.ToUpper(string(r)) + sig[i+1:]
		}
	}
	return sig
}

func TestEnvironmentEndpoints(t *testing.T) {
	assert.Equal(t, "https://securegw.paytm.in/order/process", ProcessURL("PROD"))
	assert.Equal(t, "https://securegw-stage.paytm.in/order/process", ProcessURL("TEST"))
	assert.Equal(t, "https://securegw-stage.paytm.in/order/process", ProcessURL(""))
	assert.Equal(t, "DEFAULT", Website("prod"))
	assert.Equal(t, "WEBSTAGING", Website("TEST"))
	assert.Equal(t, EnvTest, NormalizeEnv("staging"))
}
