package service

import (
	"context"
	"fmt"

	"github.com/fadilmartias/job-matcher/internal/config"
	"github.com/fadilmartias/job-matcher/internal/model"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

type OpenRouterService struct {
	client *resty.Client
	Model  string
}

func NewOpenRouterService() (*OpenRouterService, error) {
	cfg := config.LoadOpenRouterConfig()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not set")
	}
	return newOpenRouterService(cfg, config.LoadAnalyzerConfig()), nil
}

func newOpenRouterService(cfg *config.OpenRouterConfig, ac *config.AnalyzerConfig) *OpenRouterService {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(ac.Timeout).
		SetRetryCount(ac.MaxRetries)

	return &OpenRouterService{client: client, Model: cfg.Model}
}

func (s *OpenRouterService) Analyze(ctx context.Context, resume model.Resume, job model.JobInput) (*model.Analysis, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"model": s.Model,
			"messages": []map[string]string{
				{"role": "system", "content": matcherSystemPrompt},
				{"role": "user", "content": buildMatchPrompt(resume, job)},
			},
			"response_format": map[string]string{"type": "json_object"},
			"temperature":     0.1,
		}).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("openrouter request failed: %w", err)
	}
	if resp.IsError() {
		msg := gjson.Get(resp.String(), "error.message").String()
		if msg == "" {
			msg = resp.Status()
		}
		return nil, fmt.Errorf("openrouter returned %d: %s", resp.StatusCode(), msg)
	}

	text := gjson.Get(resp.String(), "choices.0.message.content").String()
	if text == "" {
		return nil, fmt.Errorf("%w: no content in completion", ErrMalformedAnalysis)
	}

	zap.S().Debugw("openrouter completion received", "job_id", job.ID, "bytes", len(text))
	return ParseAnalysis(text)
}
