// Package segment slices accumulating model output into complete sentences.
package segment

// Sentence-final runes across the supported locales. A run of consecutive
// terminators ("?!", "...") belongs to the sentence it closes.
var terminators = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
	';': true, '；': true,
}

// Split returns the completed sentences in buffer and the unterminated tail.
// It is pure and idempotent, and loss-less: concatenating the completed
// sentences with the remainder reproduces buffer exactly (inter-sentence
// whitespace stays attached to the start of the following segment).
func Split(buffer string) (complete []string, remainder string) {
	runes := []rune(buffer)
	start := 0
	i := 0
	for i < len(runes) {
		if !terminators[runes[i]] {
			i++
			continue
		}
		// Consume the whole terminator run.
		for i < len(runes) && terminators[runes[i]] {
			i++
		}
		complete = append(complete, string(runes[start:i]))
		start = i
	}
	return complete, string(runes[start:])
}

// IsTerminated reports whether text ends on a sentence boundary.
func IsTerminated(text string) bool {
	runes := []rune(text)
	if len(runes) == 0 {
		return false
	}
	return terminators[runes[len(runes)-1]]
}
