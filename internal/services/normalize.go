package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"giveaway/internal/models"
)

// Normalize turns a raw name into its ticket: trailing whitespace is trimmed
// (leading whitespace is kept) and the result is uppercased with the
// locale-independent Unicode mapping.
func Normalize(raw string) models.Ticket {
	trimmed := strings.TrimRightFunc(raw, unicode.IsSpace)
	// A Caser keeps state between calls, so each call gets its own.
	return models.Ticket(cases.Upper(language.Und).String(trimmed))
}

// NormalizeAll normalizes every name, preserving order and duplicates.
func NormalizeAll(raw []string) []models.Ticket {
	out := make([]models.Ticket, 0, len(raw))
	for _, name := range raw {
		out = append(out, Normalize(name))
	}
	return out
}
