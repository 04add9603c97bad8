package canonical_test

import (
	"testing"

	"github.com/PuneetDabral/crawlreg/canonical"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newCanonicaliser() *canonical.Canonicaliser {
	return canonical.New(zerolog.Nop())
}

func TestCanonicaliseFullURL(t *testing.T) {
	c := newCanonicaliser()
	d := c.Canonicalise("https://images.staticflickr.com/1234/photo.jpg")
	assert.Equal(t, "staticflickr.com", d.Key())
}

func TestCanonicaliseBareHostname(t *testing.T) {
	c := newCanonicaliser()
	d := c.Canonicalise("flickr.com")
	assert.Equal(t, "flickr.com", d.Key())
}

func TestCanonicaliseUnparseableFallsBackToSentinel(t *testing.T) {
	c := newCanonicaliser()
	d := c.Canonicalise(" ")
	assert.Equal(t, canonical.SentinelDomain, d.Registrable)
}

func TestCanonicaliseIsDeterministic(t *testing.T) {
	c := newCanonicaliser()
	first := c.Canonicalise("https://sub.example.co.uk/path")
	second := c.Canonicalise("https://sub.example.co.uk/other")
	assert.Equal(t, first.Key(), second.Key())
}
