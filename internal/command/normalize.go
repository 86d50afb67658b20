// Package command turns raw chat text into a typed Action.
package command

import (
	"regexp"
	"strconv"
	"strings"
)

type numberWord struct {
	re    *regexp.Regexp
	value string
}

var numberWords = func() []numberWord {
	words := []string{
		"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
		"eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
	}
	tens := []string{"twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}

	out := make([]numberWord, 0, len(words)+len(tens))
	for i, w := range words {
		out = append(out, numberWord{regexp.MustCompile(`(?i)\b` + w + `\b`), strconv.Itoa(i + 1)})
	}
	for i, w := range tens {
		out = append(out, numberWord{regexp.MustCompile(`(?i)\b` + w + `\b`), strconv.Itoa((i + 2) * 10)})
	}
	return out
}()

var (
	addPrefixRe    = regexp.MustCompile(`(?i)^add\s+`)
	currencyWordRe = regexp.MustCompile(`(?i)\b(pounds?|gbp|dollars?|euros?|lbs?)\b`)
	fillerRe       = regexp.MustCompile(`(?i)\bfor\b`)
	spacesRe       = regexp.MustCompile(`\s+`)
)

// Normalize rewrites natural-language chat text into canonical form:
// number words become digits, budget and today questions become /budget and
// /today, and "add ..." becomes a bare "<amount> <description>" payload.
// Text starting with "/" is returned unchanged.
func Normalize(text string) string {
	if strings.HasPrefix(text, "/") {
		return text
	}

	text = replaceNumberWords(text)
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "budget") || strings.Contains(lower, "how much left"):
		return "/budget"
	case strings.Contains(lower, "today"):
		return "/today"
	case strings.HasPrefix(lower, "add "):
		cleaned := addPrefixRe.ReplaceAllString(text, "")
		cleaned = currencyWordRe.ReplaceAllString(cleaned, "")
		cleaned = fillerRe.ReplaceAllString(cleaned, "")
		cleaned = strings.TrimSpace(spacesRe.ReplaceAllString(cleaned, " "))
		if strings.HasPrefix(cleaned, "/") {
			return text
		}
		return cleaned
	}
	return text
}

func replaceNumberWords(text string) string {
	for _, nw := range numberWords {
		text = nw.re.ReplaceAllString(text, nw.value)
	}
	return text
}
