package gateway

import "errors"

// Sentinel errors for the gateway domain. The HTTP boundary translates these
// via errors.Is into the status codes of the error table: unauthenticated,
// not found, rate exceeded, group denied, budget exceeded, blacklisted
// content, PII detected, PII service failure, bad upstream URL, parser
// failure, store I/O failure, login denied, request body too large.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("model not found")
	ErrRateExceeded    = errors.New("rate exceeded")
	ErrGroupDenied     = errors.New("group denied")
	ErrBudgetExceeded  = errors.New("budget exceeded")
	ErrBlacklisted     = errors.New("blacklisted content")
	ErrPIIDetected     = errors.New("pii detected")
	ErrPIIServiceDown  = errors.New("pii service failure")
	ErrBadUpstreamURL  = errors.New("bad upstream url")
	ErrParserFailed    = errors.New("response parser failure")
	ErrStoreIO         = errors.New("store i/o failure")
	ErrLoginDenied     = errors.New("login denied")
	ErrBodyTooLarge    = errors.New("request body too large")
)
