// internal/app/store/storeutil/storeutil.go
package storeutil

import "go.mongodb.org/mongo-driver/mongo/options"

// DefaultLimit is the page size used when none is given.
const DefaultLimit = 50

// MaxLimit caps caller-provided page sizes.
const MaxLimit = 1000

// ClampLimit returns limit bounded to (0, MaxLimit], or DefaultLimit when
// limit is not positive.
func ClampLimit(limit int64) int64 {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Paginate returns *options.FindOptions with skip/limit given a 1-based page.
func Paginate(limit, page int64) *options.FindOptions {
	limit = ClampLimit(limit)
	if page <= 0 {
		page = 1
	}
	sk := (page - 1) * limit
	return options.Find().SetLimit(limit).SetSkip(sk)
}
