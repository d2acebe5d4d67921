package internal

// SplitText cuts text into consecutive non-overlapping windows of at
// most size characters. Concatenating the result reproduces the input
// exactly; the last window may be shorter. No attempt is made to
// respect sentence or word boundaries.
func SplitText(text string, size int) []string {
	if size <= 0 || text == "" {
		return nil
	}

	chunks := make([]string, 0, (len(text)+size-1)/size)
	for i := 0; i < len(text); i += size {
		end := i + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[i:end])
	}
	return chunks
}
