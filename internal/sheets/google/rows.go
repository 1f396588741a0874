package google

import (
	"fmt"
	"strings"

	"budgetwise/internal/core"
)

const (
	colUser = iota
	colID
	colDate
	colType
	colCategory
	colAmount
	colDescription
	numCols
)

// lastCol is the column letter of colDescription.
const lastCol = "G"

var headerRow = []any{"User", "ID", "Date", "Type", "Category", "Amount", "Description"}

// txRow renders tx as one sheet row. The amount stays a decimal string so
// USER_ENTERED parsing turns it into a number without float rounding.
func txRow(userID string, tx core.Transaction) []any {
	row := make([]any, numCols)
	row[colUser] = userID
	row[colID] = tx.ID
	row[colDate] = tx.Date.UTC().Format("2006-01-02")
	row[colType] = string(tx.Type)
	row[colCategory] = string(tx.Category)
	row[colAmount] = tx.Amount.String()
	row[colDescription] = tx.Description
	return row
}

func cell(row []any, col int) string {
	if col >= len(row) || row[col] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[col]))
}

func isHeader(row []any) bool {
	return strings.EqualFold(cell(row, colUser), "User") && strings.EqualFold(cell(row, colID), "ID")
}

func belongsTo(row []any, userID string) bool {
	return cell(row, colUser) == userID
}

func matches(row []any, userID, txID string) bool {
	return belongsTo(row, userID) && cell(row, colID) == txID
}

// rowsByYear groups the user's transactions by calendar year, keeping
// ledger order within a year.
func rowsByYear(userID string, ledger core.Ledger) map[int][][]any {
	out := make(map[int][][]any)
	for _, tx := range ledger {
		y := tx.Date.UTC().Year()
		out[y] = append(out[y], txRow(userID, tx))
	}
	return out
}
