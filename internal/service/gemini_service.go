package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/fadilmartias/job-matcher/internal/config"
	"github.com/fadilmartias/job-matcher/internal/model"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// contentGenerator is the part of *genai.Models the service uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type GeminiServiceInterface interface {
	Analyzer
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type GeminiService struct {
	models           contentGenerator
	Model            string
	EmbeddingModel   string
	MaxRetries       int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	RequestTimeout   time.Duration
	analysisBreaker  *circuitBreaker
	embeddingBreaker *circuitBreaker
}

// circuitBreaker opens after max consecutive failures and lets one trial
// call through once cooldown has passed since it opened.
type circuitBreaker struct {
	mu       sync.Mutex
	name     string
	max      int
	cooldown time.Duration
	failures int
	openedAt time.Time
	now      func() time.Time
}

func newCircuitBreaker(name string, max int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{name: name, max: max, cooldown: cooldown, now: time.Now}
}

func (b *circuitBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.max {
		return nil
	}
	if wait := b.cooldown - b.now().Sub(b.openedAt); wait > 0 {
		return fmt.Errorf("%s circuit breaker open: too many consecutive errors (%d), retry in %v", b.name, b.failures, wait.Round(time.Millisecond))
	}
	return nil
}

func (b *circuitBreaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openedAt = time.Time{}
}

func (b *circuitBreaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.max {
		b.openedAt = b.now()
	}
}

func (b *circuitBreaker) status() (failures int, open bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	open = b.failures >= b.max && b.now().Sub(b.openedAt) < b.cooldown
	return b.failures, open
}

func NewGeminiService(ctx context.Context) (*GeminiService, error) {
	geminiConfig := config.LoadGeminiConfig()
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	analyzerConfig := config.LoadAnalyzerConfig()
	return newGeminiService(client.Models, geminiConfig, analyzerConfig), nil
}

func newGeminiService(models contentGenerator, gc *config.GeminiConfig, ac *config.AnalyzerConfig) *GeminiService {
	return &GeminiService{
		models:           models,
		Model:            gc.Model,
		EmbeddingModel:   gc.EmbeddingModel,
		MaxRetries:       ac.MaxRetries,
		BaseDelay:        time.Second,
		MaxDelay:         90 * time.Second,
		RequestTimeout:   ac.Timeout,
		analysisBreaker:  newCircuitBreaker("analysis", 5, gc.CircuitCooldown),
		embeddingBreaker: newCircuitBreaker("embedding", 5, gc.CircuitCooldown),
	}
}

var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"score":       {Type: genai.TypeNumber, Description: "Matching score from 0 to 100"},
		"reasoning":   {Type: genai.TypeString, Description: "A brief professional explanation for the score"},
		"coverLetter": {Type: genai.TypeString, Description: "The tailored cover letter (min 2 paragraphs, no headers/footers)"},
		"matchingSkills": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "List of skills from resume that match the job",
		},
		"missingSkills": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "List of key skills mentioned in job but missing in resume",
		},
	},
	Required: []string{"score", "reasoning", "coverLetter", "matchingSkills", "missingSkills"},
}

func (s *GeminiService) Analyze(ctx context.Context, resume model.Resume, job model.JobInput) (*model.Analysis, error) {
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(matcherSystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    analysisSchema,
		Temperature:       genai.Ptr(float32(0.1)),
	}

	result, err := s.GenerateContent(ctx, s.Model, buildMatchPrompt(resume, job), genConfig)
	if err != nil {
		return nil, err
	}

	return ParseAnalysis(result.Text())
}

func (s *GeminiService) GenerateContent(ctx context.Context, model string, prompt string, genConfig *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if model == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	if err := s.analysisBreaker.allow(); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.calculateBackoff(attempt)
			zap.S().Infof("Retry attempt %d/%d for GenerateContent after %v", attempt, s.MaxRetries, delay)

			select {
			case <-time.After(delay):
			case <-timeoutCtx.Done():
				return nil, fmt.Errorf("context timeout during retry: %w", timeoutCtx.Err())
			}
		}

		result, err := s.models.GenerateContent(timeoutCtx, model, genai.Text(prompt), genConfig)
		if err == nil {
			s.analysisBreaker.success()
			if err := validateGenerateResponse(result); err != nil {
				return nil, fmt.Errorf("invalid response: %w", err)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			s.analysisBreaker.failure()
			return nil, fmt.Errorf("generate content failed: %w", err)
		}

		zap.S().Warnw("retryable gemini error", "attempt", attempt+1, "error", err)
	}

	s.analysisBreaker.failure()
	return nil, fmt.Errorf("max retries (%d) exceeded for GenerateContent: %w", s.MaxRetries, lastErr)
}

func (s *GeminiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	trimmedText := strings.TrimSpace(text)
	if trimmedText == "" {
		return nil, fmt.Errorf("text for embedding cannot be empty")
	}

	if len(trimmedText) > 10000 {
		zap.S().Warnf("text length %d exceeds recommended limit, truncating", len(trimmedText))
		trimmedText = trimmedText[:10000]
	}

	if err := s.embeddingBreaker.allow(); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	content := []*genai.Content{genai.NewContentFromText(trimmedText, genai.RoleUser)}

	var lastErr error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.calculateBackoff(attempt)
			zap.S().Infof("Retry attempt %d/%d for GenerateEmbedding after %v", attempt, s.MaxRetries, delay)

			select {
			case <-time.After(delay):
			case <-timeoutCtx.Done():
				return nil, fmt.Errorf("context timeout during retry: %w", timeoutCtx.Err())
			}
		}

		result, err := s.models.EmbedContent(timeoutCtx, s.EmbeddingModel, content, nil)
		if err == nil {
			s.embeddingBreaker.success()
			embeddings, err := validateEmbeddingResponse(result)
			if err != nil {
				return nil, fmt.Errorf("invalid embedding response: %w", err)
			}
			return embeddings, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			s.embeddingBreaker.failure()
			return nil, fmt.Errorf("generate embedding failed: %w", err)
		}

		zap.S().Warnw("retryable gemini error", "attempt", attempt+1, "error", err)
	}

	s.embeddingBreaker.failure()
	return nil, fmt.Errorf("max retries (%d) exceeded for GenerateEmbedding: %w", s.MaxRetries, lastErr)
}

func (s *GeminiService) calculateBackoff(attempt int) time.Duration {
	delay := s.BaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > s.MaxDelay {
		delay = s.MaxDelay
	}

	jitter := time.Duration(float64(delay) * 0.25)
	return delay - jitter/2 + time.Duration(float64(jitter)*0.5)
}

func (s *GeminiService) ResetCircuitBreaker() {
	s.analysisBreaker.success()
	s.embeddingBreaker.success()
	zap.S().Info("Circuit breaker reset")
}

// GetCircuitBreakerStatus reports the analysis breaker.
func (s *GeminiService) GetCircuitBreakerStatus() (consecutiveErrors int, isOpen bool) {
	return s.analysisBreaker.status()
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		default:
			return false
		}
	}

	errMsg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"EOF",
		"RESOURCE_EXHAUSTED",
		"UNAVAILABLE",
	} {
		if strings.Contains(errMsg, marker) {
			return true
		}
	}
	return false
}

func validateGenerateResponse(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return fmt.Errorf("response is nil")
	}
	if len(resp.Candidates) == 0 {
		return fmt.Errorf("no candidates in response")
	}
	if resp.Candidates[0].Content == nil {
		return fmt.Errorf("candidate content is nil")
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("no parts in content")
	}
	return nil
}

func validateEmbeddingResponse(resp *genai.EmbedContentResponse) ([]float32, error) {
	if resp == nil {
		return nil, fmt.Errorf("response is nil")
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	embeddings := resp.Embeddings[0].Values
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding vector is empty")
	}

	for i, val := range embeddings {
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil, fmt.Errorf("invalid embedding value at index %d: %v", i, val)
		}
	}
	return embeddings, nil
}
