package model

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EraBracket is one construction-era category of the dataset.
type EraBracket struct {
	Label   string // label as published in the raw export
	Year    int    // representative year used by the model
	Display string // label used on charts
}

// EraBrackets is the single source for era encoding and chart labels.
var EraBrackets = []EraBracket{
	{Label: "Avant 1946", Year: 1945, Display: "Avant 1946"},
	{Label: "1946-1970", Year: 1958, Display: "1946-1970"},
	{Label: "1971-1990", Year: 1980, Display: "1971-1990"},
	{Label: "Apres 1990", Year: 1991, Display: "Après 1990"},
}

// Furnished status codes.
const (
	Unfurnished = 0
	Furnished   = 1
)

// FurnishedLabels maps folded furnished-status labels to their code.
var FurnishedLabels = map[string]int{
	"meuble":     Furnished,
	"non meuble": Unfurnished,
}

var eraByLabel = func() map[string]int {
	m := make(map[string]int, len(EraBrackets))
	for _, b := range EraBrackets {
		m[FoldLabel(b.Label)] = b.Year
	}
	return m
}()

// EraYear maps an era label, or an already-encoded representative year, to
// its year. Unknown labels return false.
func EraYear(label string) (int, bool) {
	label = strings.TrimSpace(label)
	if y, ok := eraByLabel[FoldLabel(label)]; ok {
		return y, true
	}
	if y, err := strconv.Atoi(label); err == nil {
		for _, b := range EraBrackets {
			if b.Year == y {
				return y, true
			}
		}
	}
	return 0, false
}

// EraDisplay returns the chart label for a representative year.
func EraDisplay(year int) string {
	for _, b := range EraBrackets {
		if b.Year == year {
			return b.Display
		}
	}
	return ""
}

// FurnishedCode maps a furnished-status label, or an already-encoded 0/1, to
// its code. Unknown or empty labels return false.
func FurnishedCode(label string) (int, bool) {
	label = strings.TrimSpace(label)
	switch label {
	case "1":
		return Furnished, true
	case "0":
		return Unfurnished, true
	case "":
		return 0, false
	}
	code, ok := FurnishedLabels[FoldLabel(label)]
	return code, ok
}

// FoldLabel lowercases s and strips diacritics so "Après 1990" and
// "apres 1990" compare equal.
func FoldLabel(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}
