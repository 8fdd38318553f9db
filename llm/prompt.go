// Package llm post-processes markdown with a language model.
package llm

import "unicode/utf8"

// FilterPrompt builds the boilerplate-removal prompt around markdown.
func FilterPrompt(markdown string) string {
	return `You are an AI assistant that converts webpage content to markdown while filtering out unnecessary information. Please follow these guidelines:
Remove any inappropriate content, ads, or irrelevant information
If unsure about including something, err on the side of keeping it
Answer in English. Include all points in markdown in sufficient detail to be useful.
Aim for clean, readable markdown.
Return the markdown and nothing else.
Input: ` + markdown + "\nOutput:```markdown\n"
}

// EstimateTokens approximates a token count as utf8 runes / 3, a middle
// ground between English (~4 chars/token) and CJK (~1.5 chars/token).
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	if est := n / 3; est > 0 {
		return est
	}
	return 1
}

// Truncate cuts text so that EstimateTokens(text) <= maxTokens, on a rune
// boundary. maxTokens <= 0 disables truncation.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text
	}
	limit := maxTokens * 3
	i := 0
	for pos := range text {
		if i == limit {
			return text[:pos]
		}
		i++
	}
	return text
}
