// Package usage describes provider token consumption against the configured budget.
package usage

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// ParsePeriod validates a period name. An empty name selects PeriodDay.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodMonth, PeriodTotal:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown period %q (want day, month or total)", domain.ErrInvalidRequest, s)
	}
}

// Budget is the budget state for a period. A zero TokensLimit means unlimited,
// in which case TokensRemaining is -1.
type Budget struct {
	TokensLimit     int64
	TokensRemaining int64
	Exhausted       bool
	ResetsAt        time.Time
}

// Report is the token usage of one provider for a period.
// PeriodStart and PeriodEnd are zero for PeriodTotal.
type Report struct {
	Period      Period
	PeriodStart time.Time
	PeriodEnd   time.Time
	Provider    string
	TokensUsed  int64
	Budget      Budget
}
