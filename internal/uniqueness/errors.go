package uniqueness

import "errors"

// Remote outcomes a Redeemer reports. Both are terminal for an ingest.
var (
	ErrAlreadyRedeemed  = errors.New("document already redeemed")
	ErrRateLimitReached = errors.New("redemption rate limit reached")
)
