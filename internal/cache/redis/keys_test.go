package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

func TestKeyPrefixing(t *testing.T) {
	assert.Equal(t, "income:ACME:S", incomeKey("", "ACME", domain.SideSell))
	assert.Equal(t, "pricer:income:ACME:B", incomeKey("pricer", "ACME", domain.SideBuy))
	assert.Equal(t, "pricer:depth:ACME", depthKey("pricer", "ACME"))
	assert.Equal(t, "depth:ACME:ts", depthTSKey("", "ACME"))
	assert.Equal(t, "pricer:lock:pricer:ACME", lockKey("pricer", "pricer:ACME"))

	c := &Client{prefix: "p"}
	assert.Equal(t, "p:reports:ACME", c.Key("reports:ACME"))
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("reports:*"))
	assert.False(t, hasPattern("reports:ACME"))
}

func TestParseIncome(t *testing.T) {
	r, err := parseIncome(map[string]string{"available": "true", "income": "1050", "ts": "2"})
	require.NoError(t, err)
	assert.Equal(t, domain.Report{Timestamp: 2, Available: true, Income: 1050}, r)

	_, err = parseIncome(map[string]string{"available": "maybe", "income": "1", "ts": "1"})
	assert.Error(t, err)
}

func TestPayloadBytes(t *testing.T) {
	b, ok := payloadBytes("28800538 A b S 44.26 100")
	require.True(t, ok)
	assert.Equal(t, []byte("28800538 A b S 44.26 100"), b)

	b, ok = payloadBytes("")
	assert.True(t, ok)
	assert.Empty(t, b)

	_, ok = payloadBytes(42)
	assert.False(t, ok)
}
