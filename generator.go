package copilot

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

const (
	// SystemPrompt is sent as the system message by chat providers.
	SystemPrompt = "You are a practical engineering assistant."

	EmptyCorpusAnswer  = "No documents have been uploaded to this project yet. Please upload a document first."
	DemoModeAnswer     = "Running in demo mode because no API key is configured. Upload reference documents first to get keyword-based answers."
	LocalAnswerPrefix  = "Summary based on the uploaded documents: "
	LocalSnippetLength = 120
)

// Completion is a generated answer together with its accounting.
type Completion struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model"`
}

// Generator produces an answer to question grounded on chunks, which are
// ordered by descending relevance.
type Generator interface {
	Generate(ctx context.Context, question string, chunks []Chunk) (Completion, error)
}

// AnswerProvider is an external chat completion backend.
type AnswerProvider interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// NewGenerator returns the local generator when provider is nil. Provider
// failures are reported as *LLMError.
func NewGenerator(provider AnswerProvider) Generator {
	if provider == nil {
		return localGenerator{}
	}

	return &providerGenerator{provider}
}

type localGenerator struct{}

func (localGenerator) Generate(ctx context.Context, question string, chunks []Chunk) (Completion, error) {
	if len(chunks) == 0 {
		return Completion{
			Text:  DemoModeAnswer,
			Model: ModelLocal,
		}, nil
	}

	texts := make([]string, 0, 2)
	for _, chunk := range chunks[:min(2, len(chunks))] {
		texts = append(texts, chunk.Text)
	}

	snippet := []rune(strings.Join(texts, " "))
	if len(snippet) > LocalSnippetLength {
		snippet = snippet[:LocalSnippetLength]
	}

	return Completion{
		Text:  LocalAnswerPrefix + string(snippet) + "...",
		Model: ModelLocalFallback,
	}, nil
}

type providerGenerator struct {
	provider AnswerProvider
}

func (g *providerGenerator) Generate(ctx context.Context, question string, chunks []Chunk) (Completion, error) {
	prompt := BuildPrompt(question, chunks)

	completion, err := g.provider.Complete(ctx, prompt)
	if err != nil {
		var llmErr *LLMError
		if errors.As(err, &llmErr) {
			return Completion{}, err
		}

		return Completion{}, &LLMError{err}
	}

	completion.Text = strings.TrimSpace(completion.Text)
	return completion, nil
}

// BuildPrompt numbers the context chunks from 1 and instructs the model to
// answer from them only, citing the item numbers.
func BuildPrompt(question string, chunks []Chunk) string {
	var sb strings.Builder

	sb.WriteString("You are an assistant for whom accuracy and evidence matter. Answer using only the context below.\n\n")
	sb.WriteString("Question: " + question + "\n\n")
	sb.WriteString("Context:\n")

	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n")
		}

		sb.WriteString("[" + strconv.Itoa(i+1) + "] " + chunk.Text)
	}

	sb.WriteString("\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("1) Use only information available in the context.\n")
	sb.WriteString("2) Answer in 4 to 8 sentences, in the language of the question.\n")
	sb.WriteString("3) Always mention the numbers of the context items that support the answer.")

	return sb.String()
}
