// Package entities pulls structured values out of raw user utterances.
//
// Extraction is best-effort: each recognizer scans the whole utterance and the
// last match for a key wins.
package entities

import (
	"regexp"
	"strconv"
	"strings"
)

// Keys of extracted values.
const (
	KeyTaxID                 = "taxId"
	KeyAmountDue             = "amountDue"
	KeyTaxPeriod             = "taxPeriod"
	KeyRequestedInstallments = "requestedInstallments"
)

var (
	taxIDPattern = regexp.MustCompile(`\b3\d{14}\b`)

	amountPattern = regexp.MustCompile(`(?i)(?:\b(SAR|SR|USD)\s*|(\$)\s*)?\b(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d+))?\s*(k\b|thousand\b)?\s*(SAR\b|SR\b|riyals?\b|USD\b|dollars?\b)?`)

	taxPeriodPattern = regexp.MustCompile(`(?i)\bQ([1-4])\s*[-/]?\s*(\d{4})\b`)

	installmentPattern = regexp.MustCompile(`(?i)\b(\d{1,2}|three|six|nine|twelve)[\s-]*(?:monthly\s+)?(?:months?|installments?|instalments?|payments?)\b`)

	yearPlanPattern = regexp.MustCompile(`(?i)\b(?:over|for|in)\s+(?:a|one)\s+year\b`)
)

// canonicalInstallments are the plan lengths the payment flow accepts.
var canonicalInstallments = map[string]string{
	"3": "3", "three": "3",
	"6": "6", "six": "6",
	"9": "9", "nine": "9",
	"12": "12", "twelve": "12",
}

// Extract returns every value recognized in text.
func Extract(text string) map[string]string {
	out := make(map[string]string)

	if ids := taxIDPattern.FindAllString(text, -1); len(ids) > 0 {
		out[KeyTaxID] = ids[len(ids)-1]
	}
	if amount, ok := extractAmount(text); ok {
		out[KeyAmountDue] = amount
	}
	if m := taxPeriodPattern.FindAllStringSubmatch(text, -1); len(m) > 0 {
		last := m[len(m)-1]
		out[KeyTaxPeriod] = "Q" + last[1] + "-" + last[2]
	}
	if n, ok := extractInstallments(text); ok {
		out[KeyRequestedInstallments] = n
	}
	return out
}

// Merge copies extracted values into data, overwriting existing keys.
// It never removes keys.
func Merge(data map[string]string, extracted map[string]string) {
	for k, v := range extracted {
		data[k] = v
	}
}

func extractAmount(text string) (string, bool) {
	var found string
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		prefix := m[1] != "" || m[2] != ""
		whole, frac, scale, suffix := m[3], m[4], m[5], m[6]
		if !prefix && scale == "" && suffix == "" {
			continue
		}
		if len(strings.ReplaceAll(whole, ",", "")) >= 15 {
			continue
		}
		num := strings.ReplaceAll(whole, ",", "")
		if frac != "" {
			num += "." + frac
		}
		value, err := strconv.ParseFloat(num, 64)
		if err != nil {
			continue
		}
		if scale != "" {
			value *= 1000
		}
		found = strconv.FormatFloat(value, 'f', -1, 64)
	}
	return found, found != ""
}

func extractInstallments(text string) (string, bool) {
	type hit struct {
		pos   int
		value string
	}
	var last *hit
	for _, loc := range installmentPattern.FindAllStringSubmatchIndex(text, -1) {
		word := strings.ToLower(text[loc[2]:loc[3]])
		if n, ok := canonicalInstallments[word]; ok {
			last = &hit{pos: loc[0], value: n}
		}
	}
	for _, loc := range yearPlanPattern.FindAllStringIndex(text, -1) {
		if last == nil || loc[0] > last.pos {
			last = &hit{pos: loc[0], value: "12"}
		}
	}
	if last == nil {
		return "", false
	}
	return last.value, true
}
