package signals

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category is a display bucket for signal keys.
type Category string

const (
	CategorySubscriptions Category = "Subscriptions"
	CategorySavings       Category = "Savings"
	CategoryCredit        Category = "Credit"
	CategoryIncome        Category = "Income"
	CategoryOther         Category = "Other"
)

// Categories lists the buckets in display order.
var Categories = []Category{
	CategorySubscriptions,
	CategorySavings,
	CategoryCredit,
	CategoryIncome,
	CategoryOther,
}

// categoryRules are checked in order; the first rule with a matching substring
// wins, so "subscription_income_ratio" lands in Subscriptions.
var categoryRules = []struct {
	category   Category
	substrings []string
}{
	{CategorySubscriptions, []string{"subscription"}},
	{CategorySavings, []string{"savings"}},
	{CategoryCredit, []string{"credit", "utilization"}},
	{CategoryIncome, []string{"income", "payroll"}},
}

// Categorize assigns a signal key to exactly one bucket.
func Categorize(key string) Category {
	k := strings.ToLower(key)
	for _, rule := range categoryRules {
		for _, sub := range rule.substrings {
			if strings.Contains(k, sub) {
				return rule.category
			}
		}
	}
	return CategoryOther
}

// Entry is one signal ready for display.
type Entry struct {
	Key     string
	Label   string
	Value   Value
	Display string
}

// Group is the non-empty contents of one bucket.
type Group struct {
	Category Category
	Entries  []Entry
}

// GroupSnapshot buckets every signal in m. Groups follow Categories order,
// entries keep the snapshot's key order, and empty buckets are omitted.
func GroupSnapshot(m *Map) []Group {
	buckets := make(map[Category][]Entry, len(Categories))
	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		cat := Categorize(key)
		buckets[cat] = append(buckets[cat], Entry{
			Key:     key,
			Label:   Label(key),
			Value:   v,
			Display: Format(v),
		})
	}

	groups := make([]Group, 0, len(buckets))
	for _, cat := range Categories {
		if entries := buckets[cat]; len(entries) > 0 {
			groups = append(groups, Group{Category: cat, Entries: entries})
		}
	}
	return groups
}

// Label turns a snake_case key into words: "credit_utilization_max" → "Credit Utilization Max".
func Label(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
