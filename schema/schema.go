// Package schema is the single source of truth for every key name and
// encoding the control plane writes to the shared store. No other
// package should format one of these key strings directly — workers
// and the regulator depend on exact agreement here.
package schema

import "fmt"

// Window intervals, in seconds, for the three sliding windows.
const (
	Window60s   = 60
	Window1Hour = 60 * 60
	Window12Hr  = 60 * 60 * 12
)

// Outcome values stored as sorted-set members.
const (
	OutcomeFailed    = 0
	OutcomeSucceeded = 1
)

// BenignCode404 and BenignUnidentifiedImage are the two error codes that
// never feed the circuit breaker.
const (
	BenignCode404           = "404"
	BenignUnidentifiedImage = "UnidentifiedImageError"
)

// RecentRequestsCap is the default cap on statuslast50req:{domain}; the
// configured HARD_HALT_SAMPLE_SIZE overrides it per deployment.
const RecentRequestsCap = 50

// TokenBucketKey is currtokens:{domain}.
func TokenBucketKey(domain string) string {
	return "currtokens:" + domain
}

// Window60sKey is status60s:{domain}.
func Window60sKey(domain string) string {
	return "status60s:" + domain
}

// Window1HourKey is status1hr:{domain}.
func Window1HourKey(domain string) string {
	return "status1hr:" + domain
}

// Window12HourKey is status12hr:{domain}.
func Window12HourKey(domain string) string {
	return "status12hr:" + domain
}

// AllWindowKeys returns every sliding-window key and its interval, in
// seconds, for a domain.
func AllWindowKeys(domain string) map[string]int64 {
	return map[string]int64{
		Window60sKey(domain):    Window60s,
		Window1HourKey(domain):  Window1Hour,
		Window12HourKey(domain): Window12Hr,
	}
}

// RecentRequestsKey is statuslast50req:{domain}.
func RecentRequestsKey(domain string) string {
	return "statuslast50req:" + domain
}

// ErrorCountKey is the global resize_errors counter.
const ErrorCountKey = "resize_errors"

// SuccessCountKey is the global num_resized counter.
const SuccessCountKey = "num_resized"

// DomainErrorCountKey is resize_errors:{domain}.
func DomainErrorCountKey(domain string) string {
	return "resize_errors:" + domain
}

// DomainSuccessCountKey is num_resized:{domain}.
func DomainSuccessCountKey(domain string) string {
	return "num_resized:" + domain
}

// DomainErrorCodeCountKey is resize_errors:{domain}:{code}.
func DomainErrorCodeCountKey(domain, code string) string {
	return fmt.Sprintf("resize_errors:%s:%s", domain, code)
}

// KnownTLDsKey is the known_tlds set.
const KnownTLDsKey = "known_tlds"

// HaltedKey is the halted set. Hard halts never expire, so plain
// SADD/SISMEMBER/SET membership semantics apply directly.
const HaltedKey = "halted"

// TempHaltedKeyPrefix namespaces the temp_halted entries. Redis sets
// have no per-member TTL, so each temp-halted domain is its own
// presence key under this prefix with its own EXPIRE — the set of keys
// matching "temp_halted:*" is the temp_halted membership, and a key
// expiring is exactly a domain leaving it.
const TempHaltedKeyPrefix = "temp_halted:"

// TempHaltedKey is the presence key for one domain's temporary halt.
func TempHaltedKey(domain string) string {
	return TempHaltedKeyPrefix + domain
}

// WindowMember encodes a sliding-window sample's outcome plus a caller
// supplied uniquifier into the sorted-set member string. Redis sorted
// sets require unique members: storing the bare outcome value ("0" or
// "1") as the member would make every new sample collide with the
// previous one of the same outcome and just update its score instead
// of adding a new entry, so the uniquifier (typically a nanosecond
// timestamp combined with a monotonic counter) keeps every sample
// distinct while still scored by the same wall-clock second.
func WindowMember(outcome int, uniq int64) string {
	return fmt.Sprintf("%d:%d", outcome, uniq)
}

// WindowMemberOutcome extracts the outcome value encoded by
// WindowMember. ok is false if member was not produced by WindowMember.
func WindowMemberOutcome(member string) (outcome int, ok bool) {
	var uniq int64
	if _, err := fmt.Sscanf(member, "%d:%d", &outcome, &uniq); err != nil {
		return 0, false
	}
	return outcome, true
}
