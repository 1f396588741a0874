package core

// Totals is the ledger aggregate.
type Totals struct {
	Income   Money `json:"totalIncome"`
	Expenses Money `json:"totalExpenses"`
	Balance  Money `json:"balance"`
}

// CategoryAmount is a single row of the expense breakdown.
type CategoryAmount struct {
	Category Category `json:"category"`
	Amount   Money    `json:"amount"`
}

// DayBucket holds the sums for one calendar day.
type DayBucket struct {
	Date    Date  `json:"date"`
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
}

// LoanSummary aggregates the saved loans that still have installments due.
type LoanSummary struct {
	ActiveLoans     int   `json:"activeLoans"`
	PaymentsDue     int   `json:"paymentsDue"`
	TotalMonthlyEMI Money `json:"totalMonthlyEmi"`
	TotalRemaining  Money `json:"totalRemaining"`
}
