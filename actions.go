package copilot

import (
	"context"
	"strings"
)

const (
	SummaryChunkLimit = 20

	DefaultDigestQuestion = "Summarize the recent query history."
	NothingToSummarize    = "There are no target documents or no text chunks to summarize."
	UnsupportedAction     = "Unsupported action type."
)

// ExecuteAction runs an agent action synchronously and returns its result
// text. Unknown action types are not an error.
func ExecuteAction(ctx context.Context, chunks ChunkRepository, typ ActionType, payload ActionPayload) (string, error) {
	switch typ {
	case ActionTypeSummary:
		return summarize(ctx, chunks, payload.Documents)

	case ActionTypeQueryDigest:
		if payload.Question == "" {
			return DefaultDigestQuestion, nil
		}

		return payload.Question, nil

	default:
		return UnsupportedAction, nil
	}
}

func summarize(ctx context.Context, repo ChunkRepository, documents []string) (string, error) {
	texts := make([]string, 0, SummaryChunkLimit)
	for _, id := range documents {
		if len(texts) == SummaryChunkLimit {
			break
		}

		chunks, err := repo.ChunksByDocument(ctx, id)
		if err != nil {
			return "", err
		}

		for _, chunk := range chunks {
			if len(texts) == SummaryChunkLimit {
				break
			}

			texts = append(texts, chunk.Text)
		}
	}

	if len(texts) == 0 {
		return NothingToSummarize, nil
	}

	return strings.Join(texts, " "), nil
}
