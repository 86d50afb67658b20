// Package category assigns expense categories from free-text descriptions.
package category

import (
	"strings"

	"gitlab.com/yelinaung/budgetly-bot/internal/models"
)

// Rule maps a set of lower-case keywords to a category.
type Rule struct {
	Category models.Category
	Keywords []string
}

// Classifier matches descriptions against an ordered list of rules. The first
// rule with a keyword contained in the description wins.
type Classifier struct {
	rules []Rule
}

// New creates a Classifier that evaluates rules in the given order.
func New(rules ...Rule) *Classifier {
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		keywords := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		normalized = append(normalized, Rule{Category: r.Category, Keywords: keywords})
	}
	return &Classifier{rules: normalized}
}

// DefaultRules are the built-in keyword sets in priority order.
var DefaultRules = []Rule{
	{models.CategoryFood, []string{
		"coffee", "tea", "latte", "cappuccino", "espresso", "lunch", "dinner", "breakfast", "snack", "drink",
		"food", "meal", "burger", "pizza", "sandwich", "restaurant", "groceries", "market", "sushi", "chicken", "salad",
	}},
	{models.CategoryTransport, []string{
		"bus", "train", "taxi", "uber", "cab", "bolt", "flight", "ticket", "fuel", "petrol", "gas", "transport",
		"subway", "metro", "parking",
	}},
	{models.CategoryEntertainment, []string{
		"movie", "cinema", "netflix", "spotify", "game", "concert", "party", "event", "fun", "subscription",
		"club", "bowling",
	}},
	{models.CategoryShopping, []string{
		"clothes", "shoes", "shirt", "pants", "dress", "bag", "amazon", "gift", "shopping", "buy", "electronics",
	}},
	{models.CategoryBills, []string{
		"rent", "bill", "electricity", "water", "gas", "internet", "wifi", "phone", "mobile", "tax", "insurance",
		"utility",
	}},
}

// Default is the classifier built from DefaultRules.
var Default = New(DefaultRules...)

// Classify returns the category of the first rule whose keyword occurs in
// description, or models.CategoryOther.
func (c *Classifier) Classify(description string) models.Category {
	lower := strings.ToLower(description)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Category
			}
		}
	}
	return models.CategoryOther
}

// Classify classifies description with the Default classifier.
func Classify(description string) models.Category {
	return Default.Classify(description)
}
