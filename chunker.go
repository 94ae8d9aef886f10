package copilot

import (
	"fmt"
	"strings"
)

// ChunkText splits text on whitespace into windows of at most maxTokens
// tokens, each starting overlap tokens before the end of the previous one.
// A negative overlap means none.
func ChunkText(text string, maxTokens int, overlap int) ([]string, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return []string{}, nil
	}

	if maxTokens <= 0 {
		return nil, fmt.Errorf("%w: max tokens must be greater than 0, got %d", ErrInvalidArgument, maxTokens)
	}

	if overlap < 0 {
		overlap = 0
	}

	// step >= 1 even when overlap >= maxTokens
	step := maxTokens - min(overlap, maxTokens-1)

	chunks := make([]string, 0, (len(tokens)+step-1)/step)
	for start := 0; start < len(tokens); start += step {
		end := min(start+maxTokens, len(tokens))
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
	}

	return chunks, nil
}
