package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	StatusOnTrack   LoanStatus = "On Track"
	StatusDelayed   LoanStatus = "Delayed"
	StatusCompleted LoanStatus = "Completed" // display only, never stored
)

// Editable loan fields, named as they appear on the wire.
const (
	FieldLoanName     LoanField = "loanName"
	FieldTotalAmount  LoanField = "totalAmount"
	FieldEMIAmount    LoanField = "emiAmount"
	FieldInterestRate LoanField = "interestRate"
	FieldTenure       LoanField = "tenure"
	FieldEMIsPaid     LoanField = "emisPaid"
	FieldEMIsPending  LoanField = "emisPending"
	FieldNextDueDate  LoanField = "nextDueDate"
	FieldStatus       LoanField = "status"
)

type (
	LoanStatus string

	LoanField string

	// Loan is both the extracted analysis draft and the saved record.
	// LastUpdated is nil on drafts and set when the loan is saved or paid.
	Loan struct {
		LoanName     string     `json:"loanName"`
		TotalAmount  Money      `json:"totalAmount"`
		EMIAmount    Money      `json:"emiAmount"`
		InterestRate *float64   `json:"interestRate,omitempty"`
		Tenure       int        `json:"tenure"`
		EMIsPaid     int        `json:"emisPaid"`
		EMIsPending  int        `json:"emisPending"`
		NextDueDate  Date       `json:"nextDueDate"`
		Status       LoanStatus `json:"status"`
		LastUpdated  *time.Time `json:"lastUpdated,omitempty"`
	}
)

var (
	ErrInvalidLoan   = errors.New("invalid loan")
	ErrUnknownField  = errors.New("unknown loan field")
	ErrInvalidValue  = errors.New("invalid field value")
	ErrInvalidStatus = errors.New("invalid loan status")
)

// ParseLoanStatus accepts "On Track"/"OnTrack" and "Delayed" in any case.
func ParseLoanStatus(s string) (LoanStatus, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch norm {
	case "ontrack":
		return StatusOnTrack, nil
	case "delayed":
		return StatusDelayed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Completed holds exactly when no installments are pending.
func (l Loan) Completed() bool {
	return l.EMIsPending == 0
}

// DisplayStatus overrides the stored status with Completed once the loan
// has no pending installments.
func (l Loan) DisplayStatus() LoanStatus {
	if l.Completed() {
		return StatusCompleted
	}
	return l.Status
}

// PaidThisMonth reports whether the loan was last updated in now's
// calendar month.
func (l Loan) PaidThisMonth(now time.Time) bool {
	if l.LastUpdated == nil {
		return false
	}
	last := l.LastUpdated.In(now.Location())
	return last.Year() == now.Year() && last.Month() == now.Month()
}

// CanMarkPaid is the eligibility check for MarkPaid.
func (l Loan) CanMarkPaid(now time.Time) bool {
	return l.EMIsPending > 0 && !l.PaidThisMonth(now)
}

// ProgressPercent is the share of installments paid.
func (l Loan) ProgressPercent() float64 {
	if l.Tenure <= 0 {
		return 0
	}
	return float64(l.EMIsPaid) / float64(l.Tenure) * 100
}

// AmountPaid is the EMI times the installments paid.
func (l Loan) AmountPaid() Money {
	return l.EMIAmount.Times(l.EMIsPaid)
}

// Remaining is the EMI times the installments pending.
func (l Loan) Remaining() Money {
	return l.EMIAmount.Times(l.EMIsPending)
}

// Validate checks a stored loan. The pending count may briefly disagree
// with tenure after an edit, so the sum is not enforced here.
func (l Loan) Validate() error {
	if strings.TrimSpace(l.LoanName) == "" {
		return fmt.Errorf("%w: missing loan name", ErrInvalidLoan)
	}
	if l.TotalAmount.Cents < 0 || l.EMIAmount.Cents < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidLoan)
	}
	if l.Tenure < 0 || l.EMIsPaid < 0 || l.EMIsPending < 0 {
		return fmt.Errorf("%w: negative installment count", ErrInvalidLoan)
	}
	if l.Status != StatusOnTrack && l.Status != StatusDelayed {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, l.Status)
	}
	return nil
}

// SaveLoan appends the analysis as a new saved loan stamped with now.
func SaveLoan(loans []Loan, analysis Loan, now time.Time) []Loan {
	ts := now
	analysis.LastUpdated = &ts
	out := make([]Loan, 0, len(loans)+1)
	out = append(out, loans...)
	return append(out, analysis)
}

// MarkPaid records one installment. It does not check eligibility;
// callers use CanMarkPaid first.
func MarkPaid(l Loan, now time.Time) Loan {
	l.EMIsPaid++
	l.EMIsPending--
	ts := now
	l.LastUpdated = &ts
	if l.EMIsPending == 0 {
		l.Status = StatusOnTrack
	}
	return l
}

// EditLoan overwrites one field from its textual value. Changing tenure
// or emisPaid recomputes emisPending, but only while emisPaid <= tenure.
func EditLoan(l Loan, field LoanField, value string) (Loan, error) {
	value = strings.TrimSpace(value)
	switch field {
	case FieldLoanName:
		if value == "" {
			return l, fmt.Errorf("%w: loan name cannot be empty", ErrInvalidValue)
		}
		l.LoanName = value
	case FieldTotalAmount, FieldEMIAmount:
		m, err := parseNonNegativeAmount(value)
		if err != nil {
			return l, err
		}
		if field == FieldTotalAmount {
			l.TotalAmount = m
		} else {
			l.EMIAmount = m
		}
	case FieldInterestRate:
		if value == "" {
			l.InterestRate = nil
			break
		}
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil || rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return l, fmt.Errorf("%w: interest rate %q", ErrInvalidValue, value)
		}
		l.InterestRate = &rate
	case FieldTenure, FieldEMIsPaid, FieldEMIsPending:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return l, fmt.Errorf("%w: %s %q", ErrInvalidValue, field, value)
		}
		switch field {
		case FieldTenure:
			l.Tenure = n
		case FieldEMIsPaid:
			l.EMIsPaid = n
		case FieldEMIsPending:
			l.EMIsPending = n
		}
		if field != FieldEMIsPending && l.EMIsPaid <= l.Tenure {
			l.EMIsPending = l.Tenure - l.EMIsPaid
		}
	case FieldNextDueDate:
		d, err := ParseDate(value)
		if err != nil {
			return l, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		l.NextDueDate = d
	case FieldStatus:
		st, err := ParseLoanStatus(value)
		if err != nil {
			return l, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		l.Status = st
	default:
		return l, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return l, nil
}

func parseNonNegativeAmount(value string) (Money, error) {
	d, err := parseDecimal(value)
	if err != nil {
		return Money{}, fmt.Errorf("%w: amount %q", ErrInvalidValue, value)
	}
	m, err := MoneyFromDecimal(d)
	if err != nil {
		return Money{}, fmt.Errorf("%w: amount %q", ErrInvalidValue, value)
	}
	return m, nil
}

// SummarizeLoans builds the EMI summary for now's month.
func SummarizeLoans(loans []Loan, now time.Time) LoanSummary {
	var s LoanSummary
	for _, l := range loans {
		if l.EMIsPending <= 0 {
			continue
		}
		s.ActiveLoans++
		if !l.PaidThisMonth(now) {
			s.PaymentsDue++
		}
		s.TotalMonthlyEMI = s.TotalMonthlyEMI.Add(l.EMIAmount)
		s.TotalRemaining = s.TotalRemaining.Add(l.Remaining())
	}
	return s
}
