package ai

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// FieldExtractor answers one extraction prompt about one blob of page text.
// The reply is returned as the model produced it, trimmed.
type FieldExtractor interface {
	Extract(ctx context.Context, systemPrompt, rawText string) (string, error)
}

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// FieldPrompt builds the single-field instruction used for free-form pages.
func FieldPrompt(field string) string {
	return "I will upload contract content. Plz analyze it and then give me " + field + " only. " +
		"Output must be only " + field + " without any comment and prefix such as `" + field + ":`"
}

// Truncate cuts s to at most max runes. A max of 0 or less leaves s whole.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// BudgetPrompt asks for the budget as written, or "Not defined".
const BudgetPrompt = "You are given a contract document. Extract the contract budget only. " +
	"Return the budget amount exactly as written in the document (e.g., `US$317.5 million`). " +
	"If no budget is mentioned, return only `Not defined`. Do not add any comments, explanations, or prefixes."

// DetailedSummaryPrompt is FieldPrompt("summary") asking for more detail.
const DetailedSummaryPrompt = "I will upload contract content. Plz analyze it and then give me summary only. " +
	"Summary must be detailed. Output must be only summary without any comment and prefix such as `summary:`"

var strictPolicy = bluemonday.StrictPolicy()

// HTMLToText strips all markup and collapses whitespace.
func HTMLToText(html string) string {
	text := strictPolicy.Sanitize(html)
	return strings.Join(strings.Fields(text), " ")
}
