package copilot

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flarexio/copilot/vector"
)

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrQueryNotFound       = errors.New("query not found")
)

var (
	ErrMissingProject      = fmt.Errorf("%w: project_id is required", ErrInvalidArgument)
	ErrEmptyUpload         = fmt.Errorf("%w: either file or source text must be provided", ErrInvalidArgument)
	ErrMissingFilename     = fmt.Errorf("%w: file name is missing", ErrInvalidArgument)
	ErrUnsupportedEncoding = fmt.Errorf("%w: only UTF-8 text files are supported", ErrInvalidArgument)
	ErrEmptyQuestion       = fmt.Errorf("%w: question cannot be empty", ErrInvalidArgument)
)

// LLMError reports a failed answer generation. It is never downgraded
// to the local fallback.
type LLMError struct {
	Err error
}

func (e *LLMError) Error() string {
	return "llm: " + e.Err.Error()
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// IngestionError reports a failure while chunking, embedding or persisting
// a document. The caller owns the transition to StatusFailed.
type IngestionError struct {
	DocumentID string
	Err        error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("failed to process document %s: %s", e.DocumentID, e.Err.Error())
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

type ContextKey string

const (
	ProjectID ContextKey = "project_id"
)

const (
	DefaultProjectID   = "default"
	DefaultMaxTokens   = 220
	DefaultOverlap     = 40
	NoOverlap          = -1
	DefaultTopK        = 5
	MaxTopK            = 20
	DefaultListLimit   = 100
	EmbeddingDimension = 256

	ModelLocal         = "local"
	ModelLocalFallback = "local-fallback"
)

type Config struct {
	Chunking  ChunkingConfig `yaml:"chunking"`
	Embedding ProviderConfig `yaml:"embedding"`
	Chat      ProviderConfig `yaml:"chat"`
	Vector    vector.Config  `yaml:"vector"`
	Storage   StorageConfig  `yaml:"storage"`
	Cache     CacheConfig    `yaml:"cache"`
	HTTP      HTTPConfig     `yaml:"http"`
}

// SetDefaults fills every unset field; path is the service home directory.
func (cfg *Config) SetDefaults(path string) {
	if cfg.Chunking.MaxTokens == 0 {
		cfg.Chunking.MaxTokens = DefaultMaxTokens
	}

	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = DefaultOverlap
	}

	cfg.Embedding.setDefaults()
	cfg.Chat.setDefaults()

	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "chunks"
	}

	if cfg.Vector.Path == "" {
		cfg.Vector.Path = filepath.Join(path, "vectors")
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(path, "data")
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = Duration(24 * time.Hour)
	}

	if len(cfg.HTTP.CORSOrigins) == 0 {
		cfg.HTTP.CORSOrigins = []string{"*"}
	}
}

type ChunkingConfig struct {
	MaxTokens int `yaml:"maxTokens"`

	// Overlap is DefaultOverlap when unset. Use NoOverlap for
	// back-to-back windows.
	Overlap int `yaml:"overlap"`
}

type ProviderType string

const (
	ProviderTypeNone   ProviderType = ""
	ProviderTypeOpenAI ProviderType = "openai"
	ProviderTypeGemini ProviderType = "gemini"
)

type ProviderConfig struct {
	Provider   ProviderType `json:"provider" yaml:"provider"`
	APIKey     string       `json:"-" yaml:"apiKey"`
	BaseURL    string       `json:"baseURL" yaml:"baseURL"`
	Model      string       `json:"model" yaml:"model"`
	Dimensions int          `json:"dimensions" yaml:"dimensions"`
	Timeout    Duration     `json:"timeout" yaml:"timeout"`
	RateLimit  float64      `json:"rateLimit" yaml:"rateLimit"`
	Burst      int          `json:"burst" yaml:"burst"`
}

// Enabled reports whether a credential is present. Without one the local
// implementations are used.
func (cfg ProviderConfig) Enabled() bool {
	return cfg.Provider != ProviderTypeNone && cfg.APIKey != ""
}

func (cfg *ProviderConfig) setDefaults() {
	if cfg.Provider == ProviderTypeNone && cfg.APIKey != "" {
		cfg.Provider = ProviderTypeOpenAI
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = Duration(30 * time.Second)
	}

	if cfg.Burst == 0 {
		cfg.Burst = 1
	}
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type CacheConfig struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url"`
	TTL     Duration `yaml:"ttl"`
}

type HTTPConfig struct {
	CORSOrigins []string `yaml:"corsOrigins"`
}

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	str := d.Duration().String()
	return json.Marshal(str)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration().String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusEmpty      DocumentStatus = "empty"
	StatusFailed     DocumentStatus = "failed"
)

type SourceType string

const (
	SourceTypeFile     SourceType = "file"
	SourceTypeMarkdown SourceType = "markdown"
	SourceTypeText     SourceType = "text"
	SourceTypeUnknown  SourceType = "unknown"
)

// DetectSourceType classifies an uploaded file by its extension.
func DetectSourceType(filename string) SourceType {
	name := strings.ToLower(filename)

	switch {
	case strings.HasSuffix(name, ".md"):
		return SourceTypeMarkdown
	case strings.HasSuffix(name, ".txt"):
		return SourceTypeText
	default:
		return SourceTypeUnknown
	}
}

type Document struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id"`
	Filename   string         `json:"filename,omitempty"`
	SourceType SourceType     `json:"source_type"`
	Status     DocumentStatus `json:"status"`
	ChunkCount int            `json:"chunk_count"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type ChunkMetadata struct {
	Length int `json:"length"`
	Index  int `json:"index"`
}

type Chunk struct {
	ID         string        `json:"id"`
	ProjectID  string        `json:"project_id"`
	DocumentID string        `json:"document_id"`
	Index      int           `json:"chunk_index"`
	Text       string        `json:"text"`
	Embedding  []float32     `json:"embedding,omitempty"`
	Metadata   ChunkMetadata `json:"metadata"`
	CreatedAt  time.Time     `json:"created_at"`
}

type DocumentDetail struct {
	Document Document `json:"document"`
	Chunks   []Chunk  `json:"chunks"`
}

type Citation struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// Answer is the outcome of the query pipeline before it is persisted.
type Answer struct {
	Answer           string     `json:"answer"`
	Citations        []Citation `json:"citations"`
	Model            string     `json:"model"`
	TokensUsed       int        `json:"tokens_used"`
	RelatedDocuments []string   `json:"related_documents"`
}

type Query struct {
	ID               string     `json:"id"`
	ProjectID        string     `json:"project_id"`
	Question         string     `json:"question"`
	Answer           string     `json:"answer"`
	Citations        []Citation `json:"citations"`
	LatencyMS        int64      `json:"latency_ms"`
	TokensUsed       int        `json:"tokens_used"`
	Model            string     `json:"model"`
	RelatedDocuments []string   `json:"related_documents"`
	CreatedAt        time.Time  `json:"created_at"`
}

type Feedback struct {
	ID        string    `json:"id"`
	QueryID   string    `json:"query_id"`
	Rating    *int      `json:"rating,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ActionType string

const (
	ActionTypeSummary     ActionType = "summary"
	ActionTypeQueryDigest ActionType = "query_digest"
)

type ActionStatus string

const (
	ActionStatusQueued    ActionStatus = "queued"
	ActionStatusCompleted ActionStatus = "completed"
	ActionStatusFailed    ActionStatus = "failed"
)

type ActionPayload struct {
	Documents []string `json:"documents,omitempty"`
	Question  string   `json:"question,omitempty"`
}

type Action struct {
	ID          string        `json:"action_id"`
	ProjectID   string        `json:"project_id"`
	Type        ActionType    `json:"type"`
	Payload     ActionPayload `json:"payload"`
	Status      ActionStatus  `json:"status"`
	Result      string        `json:"result"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

type Metrics struct {
	Documents         int      `json:"documents"`
	Chunks            int      `json:"chunks"`
	Queries           int      `json:"queries"`
	AvgQueryLatencyMS float64  `json:"avg_query_latency_ms"`
	FeedbackCount     int      `json:"feedback_count"`
	AvgFeedbackRating *float64 `json:"avg_feedback_rating"`
}
