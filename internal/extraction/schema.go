package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/core"
)

const systemPrompt = "You are an expert financial analyst. You read loan statements and answer only with a single JSON object that matches the requested schema."

const analyzePrompt = `Analyze the attached loan statement (PDF, spreadsheet or text export) and extract the key details of the loan:
- loan name or lender
- total loan amount (principal)
- EMI amount
- annual interest rate, only if explicitly mentioned
- total tenure in months
- number of EMIs already paid
- number of EMIs pending
- next EMI due date
- current status of the loan payments

Assume "On Track" if payments seem regular, otherwise "Delayed".
If a piece of information is not available in the statement, make a reasonable estimation, or leave it out where it is optional.
emisPaid plus emisPending must equal tenure. Give nextDueDate as YYYY-MM-DD.

Respond with JSON only, matching this schema:
` + loanSchema

const loanSchema = `{
  "loanName": string,          // name of the loan or the lender
  "totalAmount": number,       // total principal amount
  "emiAmount": number,         // monthly installment amount
  "interestRate": number,      // optional, annual percentage
  "tenure": integer,           // total tenure in months, at least 1
  "emisPaid": integer,
  "emisPending": integer,
  "nextDueDate": "YYYY-MM-DD",
  "status": "On Track" | "Delayed",
  "lastUpdated": string        // optional, RFC 3339
}`

// maxInstallments bounds counts to something a loan statement can hold.
var maxInstallments = decimal.NewFromInt(1200)

// loanReply mirrors the schema with optional fields so that missing
// values can be told apart from zeros.
type loanReply struct {
	LoanName     *string      `json:"loanName"`
	TotalAmount  *json.Number `json:"totalAmount"`
	EMIAmount    *json.Number `json:"emiAmount"`
	InterestRate *json.Number `json:"interestRate"`
	Tenure       *json.Number `json:"tenure"`
	EMIsPaid     *json.Number `json:"emisPaid"`
	EMIsPending  *json.Number `json:"emisPending"`
	NextDueDate  *string      `json:"nextDueDate"`
	Status       *string      `json:"status"`
	LastUpdated  *string      `json:"lastUpdated"`
}

// parseLoanReply decodes the model text and validates it against the
// loan schema. Every problem found is reported in one error.
func parseLoanReply(text string) (core.Loan, error) {
	var r loanReply
	dec := json.NewDecoder(strings.NewReader(cleanMarkdownWrapper(text)))
	dec.UseNumber()
	if err := dec.Decode(&r); err != nil {
		return core.Loan{}, fmt.Errorf("decode reply: %w", err)
	}

	var (
		loan     core.Loan
		problems []string
	)
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if r.LoanName == nil || strings.TrimSpace(*r.LoanName) == "" {
		add("loanName is required")
	} else {
		loan.LoanName = strings.TrimSpace(*r.LoanName)
	}

	amount := func(field string, n *json.Number, dst *core.Money) {
		if n == nil {
			add("%s is required", field)
			return
		}
		d, err := decimal.NewFromString(n.String())
		if err != nil || d.IsNegative() {
			add("%s must be a non-negative number", field)
			return
		}
		m, err := core.MoneyFromDecimal(d)
		if err != nil {
			add("%s is out of range", field)
			return
		}
		*dst = m
	}
	amount("totalAmount", r.TotalAmount, &loan.TotalAmount)
	amount("emiAmount", r.EMIAmount, &loan.EMIAmount)

	if r.InterestRate != nil {
		rate, err := r.InterestRate.Float64()
		if err != nil || rate < 0 {
			add("interestRate must be a non-negative number")
		} else {
			loan.InterestRate = &rate
		}
	}

	count := func(field string, n *json.Number, lower int) int {
		if n == nil {
			add("%s is required", field)
			return 0
		}
		d, err := decimal.NewFromString(n.String())
		if err != nil || !d.IsInteger() || d.LessThan(decimal.NewFromInt(int64(lower))) || d.GreaterThan(maxInstallments) {
			add("%s must be an integer between %d and %s", field, lower, maxInstallments)
			return 0
		}
		return int(d.IntPart())
	}
	loan.Tenure = count("tenure", r.Tenure, 1)
	loan.EMIsPaid = count("emisPaid", r.EMIsPaid, 0)
	loan.EMIsPending = count("emisPending", r.EMIsPending, 0)
	if len(problems) == 0 && loan.EMIsPaid+loan.EMIsPending != loan.Tenure {
		add("emisPaid (%d) + emisPending (%d) must equal tenure (%d)", loan.EMIsPaid, loan.EMIsPending, loan.Tenure)
	}

	if r.NextDueDate == nil {
		add("nextDueDate is required")
	} else if d, err := core.ParseDate(*r.NextDueDate); err != nil {
		add("nextDueDate must be YYYY-MM-DD")
	} else {
		loan.NextDueDate = d
	}

	if r.Status == nil {
		add("status is required")
	} else if st, err := core.ParseLoanStatus(*r.Status); err != nil {
		add("status must be \"On Track\" or \"Delayed\"")
	} else {
		loan.Status = st
	}

	if r.LastUpdated != nil && *r.LastUpdated != "" {
		ts, err := time.Parse(time.RFC3339, *r.LastUpdated)
		if err != nil {
			add("lastUpdated must be RFC 3339")
		} else {
			loan.LastUpdated = &ts
		}
	}

	if len(problems) > 0 {
		return core.Loan{}, errors.New(strings.Join(problems, "; "))
	}
	return loan, nil
}

// cleanMarkdownWrapper strips a ```json fence some models wrap replies in.
func cleanMarkdownWrapper(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
