package extractors

// DefaultChunkThreshold is the estimated token count above which raw text is split.
const DefaultChunkThreshold = 4000

// EstimateTokens approximates a token count as one token per four bytes.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Partition splits lines into contiguous groups sized so each group's estimated
// token count stays near threshold. When the whole text is within threshold, or
// there are no lines, a single chunk holding every line is returned.
func Partition(lines []string, rawText string, threshold int) [][]string {
	if threshold <= 0 {
		threshold = DefaultChunkThreshold
	}
	estimated := EstimateTokens(rawText)
	if estimated <= threshold || len(lines) == 0 {
		return [][]string{lines}
	}

	avgPerLine := float64(estimated) / float64(len(lines))
	perChunk := int(float64(threshold) / avgPerLine)
	if perChunk < 1 {
		perChunk = 1
	}

	chunks := make([][]string, 0, (len(lines)+perChunk-1)/perChunk)
	for start := 0; start < len(lines); start += perChunk {
		end := start + perChunk
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, lines[start:end:end])
	}
	return chunks
}
