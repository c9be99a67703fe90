package assembler

import (
	"fmt"
	"strings"

	"github.com/memloop/memloop-mcp/pkg/types"
)

// Packing constants. Token counts are a character-based approximation.
const (
	CharsPerToken = 4

	// MaxSummaries caps the mandatory session summaries emitted ahead of
	// the ranked items.
	MaxSummaries = 3

	// maxItemChars caps a single item's content regardless of remaining
	// budget.
	maxItemChars = 300
)

// Build packs ranked items and session summaries into a token-bounded
// text block. Summaries are mandatory context: up to MaxSummaries are
// emitted in full before the budget applies. The ranked item loop is
// greedy and stops the moment the budget is exhausted. The footer is
// always emitted and reports the full candidate count, not just what
// made it in. Build never fails; an empty input or non-positive budget
// degrades to header plus summaries plus footer.
func Build(items []types.ScoredItem, summaries []*types.Summary, project string, tokenBudget int) types.ContextResult {
	var b strings.Builder

	writeLine(&b, fmt.Sprintf("# Memory: %s", displayProject(project)))
	writeLine(&b, "")

	if len(summaries) > 0 {
		writeLine(&b, "## Recent sessions")
		count := len(summaries)
		if count > MaxSummaries {
			count = MaxSummaries
		}
		for _, s := range summaries[:count] {
			writeLine(&b, "- "+s.Content)
		}
		writeLine(&b, "")
	}

	included := 0
	if len(items) > 0 {
		writeLine(&b, "## Relevant knowledge")
		remaining := tokenBudget - estimateTokens(b.String())
		for _, item := range items {
			prefix := fmt.Sprintf("[%s] %s: ", displayKind(item.Kind), item.Title)
			remaining -= estimateTokens(prefix)
			if remaining <= 0 {
				break
			}

			content := item.Content
			capChars := maxItemChars
			if budgetChars := remaining * CharsPerToken; budgetChars < capChars {
				capChars = budgetChars
			}
			if len(content) > capChars {
				content = content[:capChars]
			}
			writeLine(&b, prefix+content)
			remaining -= estimateTokens(content + "\n")
			included++
		}
		writeLine(&b, "")
	}

	body := b.String()
	footer := fmt.Sprintf("---\nproject: %s | candidates: %d | included: %d | tokens: %d/%d",
		displayProject(project), len(items), included,
		estimateTokens(body), tokenBudget)
	text := body + footer

	return types.ContextResult{
		Text:          text,
		ItemsIncluded: included,
		TokensUsed:    estimateTokens(text),
		TokensBudget:  tokenBudget,
	}
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString("\n")
}

// estimateTokens approximates the token count of text, rounding up.
func estimateTokens(text string) int {
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}

func displayProject(project string) string {
	if project == "" {
		return "(all projects)"
	}
	return project
}

func displayKind(kind string) string {
	if kind == "" {
		return "note"
	}
	return kind
}
