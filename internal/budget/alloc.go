// Package budget implements per-request budget partitioning down a
// delegation tree and concurrency-safe spend accounting.
package budget

import (
	"github.com/shopspring/decimal"
)

// Allocate computes the budget handed to one child: the parent's remaining
// budget times the edge's share, clamped by the child's own policy ceiling
// and by what the parent actually has left. The result is always in
// [0, parentRemaining] — a child can never be allocated more than its
// parent holds, whatever its ceiling and share imply.
//
// A non-positive parentRemaining allocates zero; the caller skips the child
// as budget-exhausted rather than invoking it.
func Allocate(parentRemaining, share, childCeiling decimal.Decimal) decimal.Decimal {
	if parentRemaining.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	allocated := parentRemaining.Mul(share)
	if allocated.GreaterThan(childCeiling) {
		allocated = childCeiling
	}
	if allocated.GreaterThan(parentRemaining) {
		allocated = parentRemaining
	}
	if allocated.IsNegative() {
		return decimal.Zero
	}
	return allocated
}
