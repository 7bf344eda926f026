// Package extractor 调用语言模型从邮件正文中抽取求职字段
package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jobmail/internal/model"
	"jobmail/pkg/circuitbreaker"
	"jobmail/pkg/metrics"
)

const defaultTimeout = 30 * time.Second

// Extractor 给 Provider 加上超时、熔断和指标；所有失败都包装为 model.ErrExtraction
type Extractor struct {
	provider Provider
	breaker  *circuitbreaker.CircuitBreaker
	timeout  time.Duration
	logger   *zap.Logger
}

// Option Extractor 可选项
type Option func(*Extractor)

// WithTimeout 单次调用超时
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithBreaker 替换默认熔断器
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(e *Extractor) {
		e.breaker = cb
	}
}

func New(provider Provider, logger *zap.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		provider: provider,
		timeout:  defaultTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.breaker == nil {
		e.breaker = NewBreaker("extractor", logger)
	}
	return e
}

// NewBreaker 默认熔断器，状态变化写入指标；调用方取消不计为失败
func NewBreaker(name string, logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	cfg := circuitbreaker.DefaultConfig(name)
	cfg.IsFailure = func(err error) bool {
		return !errors.Is(err, context.Canceled)
	}
	cfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		metrics.SetCircuitBreakerState(name, int(to))
		logger.Warn("Circuit breaker state changed",
			zap.String("name", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return circuitbreaker.New(cfg)
}

// Extract 返回模型原始输出，不做解析
func (e *Extractor) Extract(ctx context.Context, cleanBody string) (string, error) {
	prompt := BuildPrompt(cleanBody)
	start := time.Now()

	var result string
	err := e.breaker.Execute(func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		out, err := e.provider.Complete(callCtx, prompt)
		if err != nil {
			return err
		}
		if out == "" {
			return errors.New("empty completion")
		}
		result = out
		return nil
	})

	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
			status = "circuit_open"
		}
	}
	metrics.RecordExtractionLatency(e.provider.Name(), status, time.Since(start))

	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", model.ErrExtraction, e.provider.Name(), err)
	}
	return result, nil
}
