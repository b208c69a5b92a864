package budget

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name      string
		remaining string
		share     string
		ceiling   string
		want      string
	}{
		{"plain share", "1.00", "0.5", "10.00", "0.50"},
		{"ceiling clamps", "1.00", "0.5", "0.25", "0.25"},
		{"share of one", "2.00", "1", "10.00", "2.00"},
		{"parent remaining clamps ceiling", "0.10", "1", "5.00", "0.10"},
		{"zero share", "1.00", "0", "10.00", "0"},
		{"zero remaining", "0", "0.5", "10.00", "0"},
		{"negative remaining", "-0.01", "0.5", "10.00", "0"},
		{"zero ceiling", "1.00", "0.5", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allocate(d(tt.remaining), d(tt.share), d(tt.ceiling))
			assert.True(t, d(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestAllocate_NeverExceedsParent(t *testing.T) {
	remaining := d("0.37")
	for _, share := range []string{"0", "0.1", "0.5", "0.99", "1"} {
		for _, ceiling := range []string{"0", "0.01", "0.37", "100"} {
			got := Allocate(remaining, d(share), d(ceiling))
			assert.False(t, got.IsNegative(), "share=%s ceiling=%s", share, ceiling)
			assert.True(t, got.LessThanOrEqual(remaining), "share=%s ceiling=%s got=%s", share, ceiling, got)
		}
	}
}

func TestSpendTracker_RecordAndRemaining(t *testing.T) {
	tr := NewSpendTracker(d("1.00"))

	tr.Record(d("0.30"), Usage{InputTokens: 100, OutputTokens: 50})
	tr.Record(d("0.20"), Usage{InputTokens: 40, OutputTokens: 10})

	assert.True(t, d("0.50").Equal(tr.TotalCost()))
	assert.True(t, d("0.50").Equal(tr.Remaining()))
	assert.Equal(t, Usage{InputTokens: 140, OutputTokens: 60}, tr.TotalUsage())
	assert.False(t, tr.Exhausted())

	tr.Record(d("0.50"), Usage{})
	assert.True(t, tr.Exhausted())
}

func TestSpendTracker_ReserveClampsToUnheldRemainder(t *testing.T) {
	tr := NewSpendTracker(d("1.00"))

	// First sibling gets its full ask, the second only what is left unheld,
	// the third nothing.
	assert.True(t, d("0.70").Equal(tr.Reserve(d("0.70"))))
	assert.True(t, d("0.30").Equal(tr.Reserve(d("0.50"))))
	assert.True(t, tr.Reserve(d("0.10")).IsZero())
	assert.True(t, tr.Exhausted())
}

func TestSpendTracker_SettleReleasesHoldAndBooksSpend(t *testing.T) {
	tr := NewSpendTracker(d("1.00"))

	grant := tr.Reserve(d("0.60"))
	assert.True(t, d("0.40").Equal(tr.Remaining()))

	// The branch only spent a fraction of its hold; the rest frees up.
	tr.Settle(grant, d("0.15"), Usage{InputTokens: 30, OutputTokens: 5})

	assert.True(t, d("0.15").Equal(tr.TotalCost()))
	assert.True(t, d("0.85").Equal(tr.Remaining()))
	assert.Equal(t, Usage{InputTokens: 30, OutputTokens: 5}, tr.TotalUsage())
	assert.False(t, tr.Exhausted())
}

func TestSpendTracker_ReserveZeroOrNegativeWant(t *testing.T) {
	tr := NewSpendTracker(d("1.00"))

	assert.True(t, tr.Reserve(decimal.Zero).IsZero())
	assert.True(t, tr.Reserve(d("-0.5")).IsZero())
	assert.True(t, d("1.00").Equal(tr.Remaining()))
}

func TestSpendTracker_ConcurrentReserveNeverOverGrants(t *testing.T) {
	tr := NewSpendTracker(d("1.00"))

	grants := make(chan decimal.Decimal, 20)
	for i := 0; i < 20; i++ {
		go func() {
			grants <- tr.Reserve(d("0.13"))
		}()
	}

	total := decimal.Zero
	for i := 0; i < 20; i++ {
		total = total.Add(<-grants)
	}
	assert.True(t, d("1.00").Equal(total), "granted %s", total)
}

func TestSpendTracker_ConcurrentRecord(t *testing.T) {
	tr := NewSpendTracker(d("100"))

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				tr.Record(d("0.01"), Usage{InputTokens: 1})
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.True(t, d("10").Equal(tr.TotalCost()))
	assert.Equal(t, int64(1000), tr.TotalUsage().InputTokens)
}
