// Package canonical maps an arbitrary URL to the registrable-domain key
// every other package in this module uses to address the shared store.
package canonical

import (
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

// SentinelDomain is returned for URLs that cannot be parsed into a
// registrable domain. The canonicaliser never returns an error to its
// caller; it logs and substitutes this value instead.
const SentinelDomain = "unknown.invalid"

// Domain is the canonical {registrable}.{suffix} key plus its two parts.
type Domain struct {
	Registrable string
	Suffix      string
}

// Key returns the schema key `{registrable}.{suffix}`.
func (d Domain) Key() string {
	if d.Suffix == "" {
		return d.Registrable
	}
	return d.Registrable + "." + d.Suffix
}

// Canonicaliser extracts registrable domains from URLs or bare hostnames.
type Canonicaliser struct {
	logger zerolog.Logger
}

// New returns a Canonicaliser that logs unparseable input at WARN level.
func New(logger zerolog.Logger) *Canonicaliser {
	return &Canonicaliser{logger: logger.With().Str("component", "canonical").Logger()}
}

// Canonicalise extracts the registrable domain from raw, which may be a
// full URL (e.g. "https://images.staticflickr.com/x.jpg") or a bare
// hostname (e.g. "staticflickr.com" — the catalog's source_url field
// ships both forms). It is deterministic and never raises for
// syntactically valid input; unparseable input maps to SentinelDomain
// and is logged.
func (c *Canonicaliser) Canonicalise(raw string) Domain {
	host := extractHost(raw)
	if host == "" {
		c.logger.Warn().Str("input", raw).Msg("could not extract host, using sentinel domain")
		return Domain{Registrable: SentinelDomain}
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		c.logger.Warn().Str("input", raw).Str("host", host).Err(err).Msg("public suffix lookup failed, using sentinel domain")
		return Domain{Registrable: SentinelDomain}
	}

	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann {
		// publicsuffix still returns a best-effort suffix for private/
		// unlisted TLDs; keep it rather than discarding the domain.
		suffix, _, _ = splitSuffix(etld1, suffix)
	}

	registrable := strings.TrimSuffix(etld1, "."+suffix)
	registrable = strings.TrimSuffix(registrable, ".")
	if registrable == "" {
		registrable = etld1
		suffix = ""
	}

	return Domain{Registrable: registrable, Suffix: suffix}
}

// extractHost pulls a bare hostname out of either a full URL or a bare
// hostname string, lower-cased and stripped of port/credentials.
func extractHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	candidate := raw
	if !strings.Contains(raw, "://") {
		candidate = "//" + raw
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// splitSuffix is a defensive fallback for hosts publicsuffix treats as
// private (not ICANN-managed): it keeps the last label as the suffix so
// the domain still resolves to a stable, non-empty key.
func splitSuffix(etld1, suffix string) (string, string, bool) {
	if suffix != "" {
		return suffix, "", true
	}
	parts := strings.Split(etld1, ".")
	if len(parts) < 2 {
		return etld1, "", false
	}
	return parts[len(parts)-1], "", false
}
