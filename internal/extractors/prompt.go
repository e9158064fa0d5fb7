package extractors

import (
	"fmt"
	"strings"
)

// ChunkPosition identifies a chunk within a partitioned run. Index is zero-based.
type ChunkPosition struct {
	Index int
	Total int
}

// BuildPrompt renders the extraction instruction for one body of raw order text.
// pos is nil for unchunked runs.
func BuildPrompt(query, rawText string, pos *ChunkPosition) string {
	var b strings.Builder
	b.WriteString("You are a data extraction assistant. Given raw order text and a user query, do two things:\n\n")
	b.WriteString("1. Parse ALL orders from the raw text into structured data.\n")
	b.WriteString("2. Extract any filter criteria from the user's query.\n\n")
	fmt.Fprintf(&b, "User query: %q\n\n", query)
	b.WriteString("Raw order data:\n")
	b.WriteString(rawText)
	b.WriteString("\n")
	if pos != nil {
		fmt.Fprintf(&b, "\n\nNote: This is chunk %d of %d. Parse all orders in this chunk.", pos.Index+1, pos.Total)
	}
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("- Extract every order completely and accurately\n")
	b.WriteString("- For state, convert full names to 2-letter codes (e.g., \"Ohio\" -> \"OH\")\n")
	b.WriteString("- For total, extract the numeric value without the $ sign\n")
	b.WriteString("- For items, extract as a list of strings\n")
	b.WriteString("- Do NOT invent orders that aren't in the text\n")
	b.WriteString("- For filters, identify state, min/max total, and item keywords from the query")
	return b.String()
}
