package otp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 6238 SHA1 test secret ("12345678901234567890" in base32).
const testURI = "otpauth://totp/NetCHB:broker?secret=GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ&issuer=NetCHB&period=30&digits=6&algorithm=SHA1"

func fixedProvider(start int64) *Provider {
	now := time.Unix(start, 0)
	p := &Provider{}
	p.Now = func() time.Time { return now }
	p.Sleep = func(d time.Duration) { now = now.Add(d) }
	return p
}

func TestParseURI(t *testing.T) {
	key, err := ParseURI(testURI)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), key.Period())

	_, err = ParseURI("https://example.com")
	assert.Error(t, err)

	_, err = ParseURI("otpauth://totp/NetCHB:broker?issuer=NetCHB")
	assert.Error(t, err)
}

func TestCodeMatchesRFCVector(t *testing.T) {
	p := fixedProvider(59)
	code, remaining, err := p.Code(testURI)
	require.NoError(t, err)
	assert.Equal(t, "287082", code)
	assert.Equal(t, 1, remaining)
}

func TestFreshCodeWaitsForNextPeriod(t *testing.T) {
	p := fixedProvider(59) // 1 second left in the current period
	stale, _, err := p.Code(testURI)
	require.NoError(t, err)

	code, err := p.FreshCode(testURI, 5*time.Second)
	require.NoError(t, err)

	// The returned code belongs to the next period.
	assert.Len(t, code, 6)
	assert.NotEqual(t, stale, code)
}

func TestFreshCodeReturnsImmediatelyWhenValid(t *testing.T) {
	p := fixedProvider(30) // full period ahead
	slept := false
	base := p.Sleep
	p.Sleep = func(d time.Duration) { slept = true; base(d) }

	code, err := p.FreshCode(testURI, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "287082", code)
	assert.False(t, slept)
}
