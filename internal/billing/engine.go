// Package billing holds the tuition accrual arithmetic used to reconcile student debt.
// It performs no I/O: callers gather enrollments, attendance and payments and pass them in.
package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WeeksPerMonth converts a weekly lesson count into a monthly one.
const WeeksPerMonth = 4

// ErrMissingPricing marks an enrollment whose group has no usable price.
var ErrMissingPricing = errors.New("billing: missing pricing data")

// Terms are the billing inputs of one enrollment.
type Terms struct {
	Joined         time.Time
	MonthlyPrice   decimal.NullDecimal
	LessonsPerWeek int
}

// Accrual is what one enrollment owes as of a date.
type Accrual struct {
	Required     decimal.Decimal
	RemainingDue decimal.Decimal
}

// Line is one enrollment's contribution to a reconciliation.
type Line struct {
	EnrollmentID string
	Terms        Terms
	Attended     int
	Paid         int64
}

// Result is the outcome of a reconciliation. Integer fields are rounded half-up to whole units.
type Result struct {
	TotalRequired          decimal.Decimal
	TotalRemaining         decimal.Decimal
	TotalPaid              int64
	TotalDebt              int64
	Balance                int64
	CurrentPeriodRemaining int64
}

// Engine computes accruals with a fallback lesson count for groups that do not set one.
type Engine struct {
	defaultLessonsPerWeek int
}

// New constructs an Engine. A default below one lesson per week is raised to one.
func New(defaultLessonsPerWeek int) *Engine {
	if defaultLessonsPerWeek < 1 {
		defaultLessonsPerWeek = 1
	}
	return &Engine{defaultLessonsPerWeek: defaultLessonsPerWeek}
}

// LessonsPerMonth resolves the monthly lesson count for a group setting.
func (e *Engine) LessonsPerMonth(lessonsPerWeek int) int {
	if lessonsPerWeek < 1 {
		lessonsPerWeek = e.defaultLessonsPerWeek
	}
	return lessonsPerWeek * WeeksPerMonth
}

// Validate reports ErrMissingPricing when the terms cannot be billed.
func (e *Engine) Validate(t Terms) error {
	if !t.MonthlyPrice.Valid || t.MonthlyPrice.Decimal.IsNegative() {
		return ErrMissingPricing
	}
	if t.Joined.IsZero() {
		return fmt.Errorf("%w: join date unset", ErrMissingPricing)
	}
	return nil
}

// Accrue computes what an enrollment requires up to today and what remains due this month,
// given the present lessons counted inside AttendanceWindow(today, t.Joined).
func (e *Engine) Accrue(today time.Time, t Terms, attended int) (Accrual, error) {
	if err := e.Validate(t); err != nil {
		return Accrual{}, err
	}
	today, joined := Date(today), Date(t.Joined)
	if joined.After(today) {
		return Accrual{Required: decimal.Zero, RemainingDue: decimal.Zero}, nil
	}

	price := t.MonthlyPrice.Decimal
	lessons := e.LessonsPerMonth(t.LessonsPerWeek)

	if SameMonth(today, joined) {
		days := DaysInMonth(today)
		remainingDays := days - joined.Day() + 1
		required := prorate(price, remainingDays, days)
		// price * (lessons*remainingDays/days - attended) / lessons, multiplied out before dividing.
		owedLessonDays := int64(lessons*remainingDays) - int64(attended*days)
		remaining := price.Mul(decimal.NewFromInt(owedLessonDays)).Div(decimal.NewFromInt(int64(days * lessons)))
		return Accrual{Required: required, RemainingDue: floor(remaining)}, nil
	}

	months := MonthsBetween(joined, today)
	var required decimal.Decimal
	if joined.Day() > 1 {
		firstDays := DaysInMonth(joined)
		required = prorate(price, firstDays-joined.Day()+1, firstDays).
			Add(price.Mul(decimal.NewFromInt(int64(months - 1)))).
			Add(price)
	} else {
		required = price.Mul(decimal.NewFromInt(int64(months)))
	}
	remaining := price.Mul(decimal.NewFromInt(int64(lessons - attended))).Div(decimal.NewFromInt(int64(lessons)))
	return Accrual{Required: required, RemainingDue: floor(remaining)}, nil
}

// Summarize accrues every line and nets the total against payments.
// Lines must already be validated; an invalid line is an error.
func (e *Engine) Summarize(today time.Time, lines []Line) (Result, error) {
	required := decimal.Zero
	remaining := decimal.Zero
	var paid int64
	for _, line := range lines {
		accrual, err := e.Accrue(today, line.Terms, line.Attended)
		if err != nil {
			return Result{}, fmt.Errorf("enrollment %s: %w", line.EnrollmentID, err)
		}
		required = required.Add(accrual.Required)
		remaining = remaining.Add(accrual.RemainingDue)
		paid += line.Paid
	}
	return Settle(required, remaining, paid), nil
}

// Settle nets required charges against payments. Debt and balance are never both positive.
func Settle(required, remaining decimal.Decimal, paid int64) Result {
	net := required.Sub(decimal.NewFromInt(paid))
	res := Result{
		TotalRequired:          required,
		TotalRemaining:         remaining,
		TotalPaid:              paid,
		CurrentPeriodRemaining: Round(remaining),
	}
	if net.IsPositive() {
		res.TotalDebt = Round(net)
	} else {
		res.Balance = Round(net.Neg())
	}
	return res
}

// Round converts an amount to whole currency units, half-up.
func Round(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// Hash fingerprints the inputs of a reconciliation so identical runs can be recognised.
func Hash(today time.Time, lines []Line) string {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EnrollmentID < sorted[j].EnrollmentID })

	var b strings.Builder
	b.WriteString(Date(today).Format("2006-01-02"))
	for _, l := range sorted {
		fmt.Fprintf(&b, "|%s;%s;%s;%d;%d;%d",
			l.EnrollmentID,
			Date(l.Terms.Joined).Format("2006-01-02"),
			l.Terms.MonthlyPrice.Decimal.String(),
			l.Terms.LessonsPerWeek,
			l.Attended,
			l.Paid,
		)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func prorate(price decimal.Decimal, days, of int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(days))).Div(decimal.NewFromInt(int64(of)))
}

func floor(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
