package extraction

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"budgetwise/internal/core"
	applog "budgetwise/internal/log"
)

const maxDescriptionRunes = 200

func suggestPrompt(description string) string {
	names := make([]string, 0, len(core.ExpenseCategories()))
	for _, c := range core.ExpenseCategories() {
		names = append(names, string(c))
	}
	return "Pick the single best expense category for this transaction description.\n" +
		"Categories: " + strings.Join(names, ", ") + ".\n" +
		"Description: " + description + "\n" +
		`Respond with JSON only: {"category": "<one of the categories>"}`
}

// SuggestCategory asks the model for an expense category. Replies outside
// the closed set, or that cannot be read at all, map to Other.
func (c *Client) SuggestCategory(ctx context.Context, description string) (core.Category, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", ErrEmptyDescription
	}
	if r := []rune(description); len(r) > maxDescriptionRunes {
		description = string(r[:maxDescriptionRunes])
	}

	text, err := c.send(ctx, []contentBlock{{Type: "text", Text: suggestPrompt(description)}})
	if err != nil {
		return "", err
	}

	category := parseCategoryReply(text)
	slog.DebugContext(ctx, "Category suggested",
		applog.FieldComponent, applog.ComponentExtraction,
		applog.FieldOperation, applog.OpSuggest,
		applog.FieldCategory, category)
	return category, nil
}

func parseCategoryReply(text string) core.Category {
	text = cleanMarkdownWrapper(text)
	var reply struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		reply.Category = strings.Trim(text, "\"' .")
	}
	if c, ok := core.ParseCategory(reply.Category); ok {
		return c
	}
	return core.CategoryOther
}
