package budget

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Usage holds token counts for a single agent invocation.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add accumulates u2 into u.
func (u *Usage) Add(u2 Usage) {
	u.InputTokens += u2.InputTokens
	u.OutputTokens += u2.OutputTokens
}

// SpendTracker accounts for one node's budget across its concurrent child
// branches. Shares may optimistically imply more than the node has, so a
// branch must first Reserve its allocation: the grant is clamped to what is
// neither spent nor held by a sibling, which keeps the sum actually spent
// under the node budget. When a branch finishes, Settle releases the hold
// and books the real cost. Safe for concurrent use.
type SpendTracker struct {
	budget   decimal.Decimal
	spent    decimal.Decimal
	reserved decimal.Decimal
	usage    Usage
	mu       sync.Mutex
}

// NewSpendTracker creates a tracker over the node's allocated budget.
func NewSpendTracker(budget decimal.Decimal) *SpendTracker {
	return &SpendTracker{
		budget:   budget,
		spent:    decimal.Zero,
		reserved: decimal.Zero,
	}
}

// Reserve grants up to want out of the unheld remainder and places a hold on
// it. A zero grant means the budget is exhausted for further branches.
func (t *SpendTracker) Reserve(want decimal.Decimal) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()

	avail := t.budget.Sub(t.spent).Sub(t.reserved)
	if avail.LessThanOrEqual(decimal.Zero) || want.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	grant := want
	if avail.LessThan(grant) {
		grant = avail
	}
	t.reserved = t.reserved.Add(grant)
	return grant
}

// Settle releases a branch's hold and books what the branch actually spent.
// Spend is charged unconditionally: cancelled branches still pay for what
// they consumed before cancellation.
func (t *SpendTracker) Settle(reservation, spent decimal.Decimal, usage Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reserved = t.reserved.Sub(reservation)
	if t.reserved.IsNegative() {
		t.reserved = decimal.Zero
	}
	t.spent = t.spent.Add(spent)
	t.usage.Add(usage)
}

// Record books direct spend that never went through a reservation, i.e. the
// node's own model call.
func (t *SpendTracker) Record(cost decimal.Decimal, usage Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.spent = t.spent.Add(cost)
	t.usage.Add(usage)
}

// TotalCost returns the cumulative spend booked so far.
func (t *SpendTracker) TotalCost() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spent
}

// TotalUsage returns the cumulative token usage booked so far.
func (t *SpendTracker) TotalUsage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

// Remaining returns what is left of the budget after spend and open holds.
// Never negative.
func (t *SpendTracker) Remaining() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()

	rem := t.budget.Sub(t.spent).Sub(t.reserved)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// Exhausted reports whether spend and holds have consumed the whole budget.
func (t *SpendTracker) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spent.Add(t.reserved).GreaterThanOrEqual(t.budget)
}
