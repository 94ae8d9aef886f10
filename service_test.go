package copilot_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/flarexio/copilot"
	"github.com/flarexio/copilot/persistence/chromem"
	"github.com/flarexio/copilot/persistence/sqlite"
	"github.com/flarexio/copilot/vector"
)

type failingChunkStore struct {
	*sqlite.Store
}

func (s *failingChunkStore) PersistChunk(ctx context.Context, chunk copilot.Chunk) error {
	return errors.New("disk full")
}

type failingEmbeddingProvider struct{}

func (failingEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding quota exceeded")
}

type failingAnswerProvider struct{}

func (failingAnswerProvider) Complete(ctx context.Context, prompt string) (copilot.Completion, error) {
	return copilot.Completion{}, errors.New("chat quota exceeded")
}

type copilotTestSuite struct {
	suite.Suite
	ctx   context.Context
	cfg   copilot.Config
	store *sqlite.Store
	svc   copilot.Service
}

func (suite *copilotTestSuite) SetupTest() {
	store, err := sqlite.NewStore(suite.T().TempDir())
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	var cfg copilot.Config
	cfg.SetDefaults(suite.T().TempDir())

	suite.ctx = context.Background()
	suite.cfg = cfg
	suite.store = store
	suite.svc = copilot.NewService(cfg, store, copilot.NewEmbedder(nil), copilot.NewGenerator(nil), nil)
}

func (suite *copilotTestSuite) TearDownTest() {
	suite.svc.Close()
}

func (suite *copilotTestSuite) upload(projectID string, filename string, text string) *copilot.Document {
	doc, err := suite.svc.UploadDocument(suite.ctx, copilot.UploadRequest{
		ProjectID: projectID,
		File: &copilot.UploadFile{
			Filename: filename,
			Content:  []byte(text),
		},
	})

	suite.Require().NoError(err)
	return doc
}

func (suite *copilotTestSuite) TestAskEmptyCorpus() {
	query, err := suite.svc.Ask(suite.ctx, "p1", "What is RAG?", 0)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(copilot.EmptyCorpusAnswer, query.Answer)
	suite.Equal(copilot.ModelLocalFallback, query.Model)
	suite.Empty(query.Citations)
	suite.Empty(query.RelatedDocuments)

	stored, err := suite.svc.GetQuery(suite.ctx, query.ID)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(query.Answer, stored.Answer)
}

func (suite *copilotTestSuite) TestUploadAndAsk() {
	golang := suite.upload("p1", "golang.md", "goroutines and channels make concurrency simple")
	suite.upload("p1", "bread.txt", "knead flour water yeast then bake in a hot oven")
	suite.upload("p2", "other.txt", "goroutines and channels in another project")

	suite.Equal(copilot.StatusReady, golang.Status)
	suite.Equal(1, golang.ChunkCount)

	query, err := suite.svc.Ask(suite.ctx, "p1", "goroutines channels", 1)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(copilot.ModelLocalFallback, query.Model)
	suite.Contains(query.Answer, copilot.LocalAnswerPrefix)

	if suite.Len(query.Citations, 1) {
		suite.Equal(golang.ID, query.Citations[0].DocumentID)
		suite.Greater(query.Citations[0].Score, 0.0)
	}

	suite.Equal([]string{golang.ID}, query.RelatedDocuments)

	docs, err := suite.svc.ListDocuments(suite.ctx, "p1", 0, 0)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Len(docs, 2)
}

func (suite *copilotTestSuite) TestIngestScenarioText() {
	doc := suite.upload("p1", "intro.txt", "이 프로젝트는 문서 기반 질의 응답 시스템입니다.")

	suite.Equal(copilot.StatusReady, doc.Status)
	suite.GreaterOrEqual(doc.ChunkCount, 1)
	suite.Equal(copilot.SourceTypeText, doc.SourceType)
}

func (suite *copilotTestSuite) TestUploadWithoutOverlap() {
	cfg := suite.cfg
	cfg.Chunking.MaxTokens = 4
	cfg.Chunking.Overlap = copilot.NoOverlap
	cfg.SetDefaults(suite.T().TempDir())

	svc := copilot.NewService(cfg, suite.store, copilot.NewEmbedder(nil), copilot.NewGenerator(nil), nil)

	doc, err := svc.UploadDocument(suite.ctx, copilot.UploadRequest{
		ProjectID: "p1",
		File: &copilot.UploadFile{
			Filename: "windows.txt",
			Content:  []byte("one two three four five six seven eight"),
		},
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(2, doc.ChunkCount)

	detail, err := svc.GetDocument(suite.ctx, doc.ID)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	if suite.Len(detail.Chunks, 2) {
		suite.Equal("one two three four", detail.Chunks[0].Text)
		suite.Equal("five six seven eight", detail.Chunks[1].Text)
	}
}

func (suite *copilotTestSuite) TestProviderFailures() {
	svc := copilot.NewService(suite.cfg, suite.store,
		copilot.NewEmbedder(failingEmbeddingProvider{}),
		copilot.NewGenerator(failingAnswerProvider{}),
		nil,
	)

	// embedding failures fall back to local vectors
	doc, err := svc.UploadDocument(suite.ctx, copilot.UploadRequest{
		ProjectID:  "p1",
		SourceText: "goroutines and channels make concurrency simple",
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(copilot.StatusReady, doc.Status)

	detail, err := svc.GetDocument(suite.ctx, doc.ID)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	if suite.Len(detail.Chunks, 1) {
		suite.Equal(copilot.LocalEmbedding(detail.Chunks[0].Text), detail.Chunks[0].Embedding)
	}

	// generation failures are surfaced
	_, err = svc.Ask(suite.ctx, "p1", "goroutines channels", 0)

	var llmErr *copilot.LLMError
	suite.Require().ErrorAs(err, &llmErr)
	suite.Contains(err.Error(), "chat quota exceeded")

	metrics, err := svc.Metrics(suite.ctx, "p1")
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(0, metrics.Queries)

	// an empty corpus never reaches the generator
	query, err := svc.Ask(suite.ctx, "p2", "anything?", 0)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(copilot.EmptyCorpusAnswer, query.Answer)
}

func (suite *copilotTestSuite) TestAskWithVectorIndex() {
	db, err := chromem.NewChromemVectorDB(vector.Config{})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	svc := copilot.NewService(suite.cfg, suite.store, copilot.NewEmbedder(nil), copilot.NewGenerator(nil), db)

	golang := suite.upload("p1", "golang.md", "goroutines and channels make concurrency simple")
	suite.upload("p1", "bread.txt", "knead flour water yeast then bake in a hot oven")

	for range 2 {
		query, err := svc.Ask(suite.ctx, "p1", "goroutines channels", 5)
		if err != nil {
			suite.Fail(err.Error())
			return
		}

		if suite.Len(query.Citations, 2) {
			suite.Equal(golang.ID, query.Citations[0].DocumentID)
		}
	}
}

func (suite *copilotTestSuite) TestUploadValidation() {
	_, err := suite.svc.UploadDocument(suite.ctx, copilot.UploadRequest{ProjectID: "p1", SourceText: "  \n "})
	suite.ErrorIs(err, copilot.ErrEmptyUpload)

	_, err = suite.svc.UploadDocument(suite.ctx, copilot.UploadRequest{SourceText: "text"})
	suite.ErrorIs(err, copilot.ErrMissingProject)

	_, err = suite.svc.UploadDocument(suite.ctx, copilot.UploadRequest{
		ProjectID: "p1",
		File:      &copilot.UploadFile{Content: []byte("text")},
	})
	suite.ErrorIs(err, copilot.ErrMissingFilename)

	_, err = suite.svc.UploadDocument(suite.ctx, copilot.UploadRequest{
		ProjectID: "p1",
		File:      &copilot.UploadFile{Filename: "bin.txt", Content: []byte{0xff, 0xfe}},
	})
	suite.ErrorIs(err, copilot.ErrInvalidArgument)
}

func (suite *copilotTestSuite) TestUploadWhitespaceFileIsEmpty() {
	doc := suite.upload("p1", "blank.txt", " \n\t ")

	suite.Equal(copilot.StatusEmpty, doc.Status)
	suite.Equal(0, doc.ChunkCount)

	detail, err := suite.svc.GetDocument(suite.ctx, doc.ID)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Empty(detail.Chunks)
}

func (suite *copilotTestSuite) TestUploadFailedIngestion() {
	svc := copilot.NewService(suite.cfg, &failingChunkStore{suite.store}, copilot.NewEmbedder(nil), copilot.NewGenerator(nil), nil)

	_, err := svc.UploadDocument(suite.ctx, copilot.UploadRequest{ProjectID: "p1", SourceText: "some text"})

	var ingestErr *copilot.IngestionError
	suite.ErrorAs(err, &ingestErr)

	docs, err := suite.svc.ListDocuments(suite.ctx, "p1", 0, 0)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	if suite.Len(docs, 1) {
		suite.Equal(copilot.StatusFailed, docs[0].Status)
		suite.Equal(copilot.SourceTextFilename, docs[0].Filename)
	}
}

func (suite *copilotTestSuite) TestAskValidation() {
	_, err := suite.svc.Ask(suite.ctx, "p1", "   ", 5)
	suite.ErrorIs(err, copilot.ErrEmptyQuestion)

	_, err = suite.svc.Ask(suite.ctx, "p1", "q", copilot.MaxTopK+1)
	suite.ErrorIs(err, copilot.ErrInvalidArgument)

	_, err = suite.svc.Ask(suite.ctx, "p1", "q", -1)
	suite.ErrorIs(err, copilot.ErrInvalidArgument)
}

func (suite *copilotTestSuite) TestFeedback() {
	_, err := suite.svc.AddFeedback(suite.ctx, "missing", nil, "note")
	suite.ErrorIs(err, copilot.ErrQueryNotFound)

	query, err := suite.svc.Ask(suite.ctx, "p1", "anything?", 0)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	bad := 6
	_, err = suite.svc.AddFeedback(suite.ctx, query.ID, &bad, "")
	suite.ErrorIs(err, copilot.ErrInvalidArgument)

	_, err = suite.svc.AddFeedback(suite.ctx, query.ID, nil, "no rating")
	suite.NoError(err)

	metrics, err := suite.svc.Metrics(suite.ctx, "p1")
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(0, metrics.FeedbackCount)
	suite.Nil(metrics.AvgFeedbackRating)
}

func (suite *copilotTestSuite) TestMetrics() {
	now := time.Now().UTC()

	for i, latency := range []int64{100, 200} {
		err := suite.store.CreateQuery(suite.ctx, copilot.Query{
			ID:        []string{"q-1", "q-2"}[i],
			ProjectID: "p1",
			Question:  "q",
			Answer:    "a",
			LatencyMS: latency,
			Model:     copilot.ModelLocal,
			CreatedAt: now,
		})

		suite.Require().NoError(err)
	}

	four, five := 4, 5
	_, err := suite.svc.AddFeedback(suite.ctx, "q-1", &four, "")
	suite.Require().NoError(err)

	_, err = suite.svc.AddFeedback(suite.ctx, "q-2", &five, "")
	suite.Require().NoError(err)

	suite.upload("p1", "a.txt", "alpha beta")

	metrics, err := suite.svc.Metrics(suite.ctx, "p1")
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(1, metrics.Documents)
	suite.Equal(1, metrics.Chunks)
	suite.Equal(2, metrics.Queries)
	suite.Equal(150.0, metrics.AvgQueryLatencyMS)
	suite.Equal(2, metrics.FeedbackCount)

	if suite.NotNil(metrics.AvgFeedbackRating) {
		suite.Equal(4.5, *metrics.AvgFeedbackRating)
	}

	other, err := suite.svc.Metrics(suite.ctx, "p2")
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(0, other.Queries)
	suite.Equal(0.0, other.AvgQueryLatencyMS)
}

func (suite *copilotTestSuite) TestActions() {
	doc := suite.upload("p1", "notes.txt", "first   line\nsecond line")

	action, err := suite.svc.RunAction(suite.ctx, "p1", copilot.ActionTypeSummary, copilot.ActionPayload{
		Documents: []string{doc.ID},
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(copilot.ActionStatusCompleted, action.Status)
	suite.Equal("first line second line", action.Result)
	suite.NotNil(action.CompletedAt)

	stored, err := suite.store.GetAction(suite.ctx, action.ID)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(copilot.ActionStatusCompleted, stored.Status)

	action, err = suite.svc.RunAction(suite.ctx, "p1", copilot.ActionTypeSummary, copilot.ActionPayload{})
	suite.Require().NoError(err)
	suite.Equal(copilot.NothingToSummarize, action.Result)

	action, err = suite.svc.RunAction(suite.ctx, "", copilot.ActionTypeQueryDigest, copilot.ActionPayload{})
	suite.Require().NoError(err)
	suite.Equal(copilot.DefaultDigestQuestion, action.Result)
	suite.Equal(copilot.DefaultProjectID, action.ProjectID)

	action, err = suite.svc.RunAction(suite.ctx, "p1", copilot.ActionType("translate"), copilot.ActionPayload{})
	suite.Require().NoError(err)
	suite.Equal(copilot.UnsupportedAction, action.Result)
	suite.Equal(copilot.ActionStatusCompleted, action.Status)

	_, err = suite.svc.RunAction(suite.ctx, "p1", "", copilot.ActionPayload{})
	suite.ErrorIs(err, copilot.ErrInvalidArgument)
}

func TestCopilotTestSuite(t *testing.T) {
	suite.Run(t, new(copilotTestSuite))
}
