package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Expense categories form a closed set; CategoryIncome is reserved for
// income transactions.
const (
	CategoryGroceries     Category = "Groceries"
	CategoryRent          Category = "Rent"
	CategoryTransport     Category = "Transport"
	CategoryEntertainment Category = "Entertainment"
	CategoryUtilities     Category = "Utilities"
	CategoryShopping      Category = "Shopping"
	CategoryFood          Category = "Food"
	CategoryTravel        Category = "Travel"
	CategoryBills         Category = "Bills"
	CategoryOther         Category = "Other"
	CategoryIncome        Category = "Income"
)

const (
	minDescriptionLen = 2
	maxDescriptionLen = 200
	dateLayout        = "2006-01-02"
)

type (
	TransactionType string

	Category string

	// Date is a calendar date without time of day.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID          string          `json:"id"`
		Type        TransactionType `json:"type"`
		Category    Category        `json:"category"`
		Amount      Money           `json:"amount"`
		Description string          `json:"description"`
		Date        time.Time       `json:"date"`
	}

	// NewTransaction is a submission before it gets an id and timestamp.
	NewTransaction struct {
		Type        TransactionType `json:"type"`
		Category    Category        `json:"category"`
		Amount      Money           `json:"amount"`
		Description string          `json:"description"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long")
	ErrInvalidDate        = errors.New("invalid date")
)

var expenseCategories = []Category{
	CategoryGroceries,
	CategoryRent,
	CategoryTransport,
	CategoryEntertainment,
	CategoryUtilities,
	CategoryShopping,
	CategoryFood,
	CategoryTravel,
	CategoryBills,
	CategoryOther,
}

// ExpenseCategories returns the closed expense category set in display order.
func ExpenseCategories() []Category {
	out := make([]Category, len(expenseCategories))
	copy(out, expenseCategories)
	return out
}

// IsExpense reports whether c belongs to the expense set.
func (c Category) IsExpense() bool {
	for _, ec := range expenseCategories {
		if c == ec {
			return true
		}
	}
	return false
}

// ParseCategory matches s case-insensitively against the expense set.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, ec := range expenseCategories {
		if strings.EqualFold(s, string(ec)) {
			return ec, true
		}
	}
	return "", false
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Normalize trims the description and forces the Income category on
// income submissions.
func (n NewTransaction) Normalize() NewTransaction {
	n.Description = strings.TrimSpace(n.Description)
	n.Type = TransactionType(strings.ToLower(strings.TrimSpace(string(n.Type))))
	if n.Type == Income {
		n.Category = CategoryIncome
	} else if c, ok := ParseCategory(string(n.Category)); ok {
		n.Category = c
	}
	return n
}

func (n NewTransaction) Validate() error {
	if !n.Type.Valid() {
		return ErrInvalidType
	}
	if err := n.Amount.Validate(); err != nil {
		return err
	}
	desc := strings.TrimSpace(n.Description)
	if len([]rune(desc)) < minDescriptionLen {
		return ErrEmptyDescription
	}
	if len([]rune(desc)) > maxDescriptionLen {
		return fmt.Errorf("%w (max %d characters)", ErrDescriptionTooLong, maxDescriptionLen)
	}
	switch n.Type {
	case Expense:
		if !n.Category.IsExpense() {
			return ErrInvalidCategory
		}
	case Income:
		if n.Category != CategoryIncome {
			return ErrInvalidCategory
		}
	}
	return nil
}

// Validate checks a stored transaction, e.g. one decoded from storage.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("missing id")
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	switch t.Type {
	case Income:
		if t.Category != CategoryIncome {
			return ErrInvalidCategory
		}
	case Expense:
		if !t.Category.IsExpense() {
			return ErrInvalidCategory
		}
	default:
		return ErrInvalidType
	}
	return nil
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(data))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
