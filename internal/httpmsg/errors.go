package httpmsg

import "github.com/wrknet/warpgate/internal/gwerr"

func errBadRequest(msg string) error {
	return gwerr.New(gwerr.BadRequest, "httpmsg.parse", msg)
}

func errHeaderTooLarge(msg string) error {
	return gwerr.New(gwerr.HeaderTooLarge, "httpmsg.parse", msg)
}

// Limits bounds the HTTP parser, per spec §4.5: any breach fails with
// HeaderTooLarge.
type Limits struct {
	MaxHeaderCount int
	MaxKeyLength   int
	MaxValueLength int
}

// DefaultLimits matches common practice: generous enough for real
// clients, small enough to bound memory per connection.
var DefaultLimits = Limits{
	MaxHeaderCount: 100,
	MaxKeyLength:   256,
	MaxValueLength: 8192,
}
