package chunk

import "fmt"

// Split cuts text into a deterministic sliding window of chunks. Units are
// runes. Every chunk holds at most size runes, and chunk k+1 begins
// size-overlap runes after chunk k. The final chunk may be shorter.
// Identical inputs always produce identical output.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

func validateWindow(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrIngest, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: overlap must satisfy 0 <= overlap < chunk size, got overlap=%d size=%d", ErrIngest, overlap, size)
	}
	return nil
}
