package quota_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/target-engine/quota"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pct(product, cash, customer string) quota.Split {
	return quota.Split{Product: dec(product), Cash: dec(cash), Customer: dec(customer)}
}

// assertDecimal compares by value, so "5000" equals "5000.00".
func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func day(year int, month time.Month, d int) quota.Date {
	return quota.NewDate(year, month, d)
}

// october15 is a Wednesday.
func october15() time.Time {
	return time.Date(2025, time.October, 15, 12, 0, 0, 0, time.UTC)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func qty(n int64) *int64 { return &n }

func idPtr(id quota.ID) *quota.ID { return &id }
