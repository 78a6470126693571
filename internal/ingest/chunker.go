package ingest

// Chunk splits text into windows of at most size runes, each overlapping
// the previous by overlap runes. Splitting on runes keeps multi-byte
// characters intact. Empty input yields no chunks.
func Chunk(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
