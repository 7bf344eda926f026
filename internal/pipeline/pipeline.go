// Package pipeline 对一个批次的邮件执行 清洗 → 打分 → 抽取 → 解析 → 持久化，
// 单封邮件的失败只记录在 BatchReport 中，不影响同批次的其它邮件。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobmail/internal/model"
	"jobmail/internal/normalize"
	"jobmail/internal/parser"
	"jobmail/pkg/logger"
	"jobmail/pkg/metrics"
)

const DefaultConcurrency = 4

type Scorer interface {
	Score(clean string) int
	Accept(score int) bool
}

type Extractor interface {
	Extract(ctx context.Context, cleanBody string) (string, error)
}

type Sink interface {
	InsertApplication(ctx context.Context, rec model.ApplicationRecord) error
}

type Deduper interface {
	AcquireOnce(ctx context.Context, ownerID, messageID string) bool
	Release(ctx context.Context, ownerID, messageID string)
}

type FailureRecorder interface {
	RecordFailure(ctx context.Context, ownerID string, o model.MessageOutcome) error
}

type Pipeline struct {
	scorer      Scorer
	extractor   Extractor
	sink        Sink
	deduper     Deduper
	failures    FailureRecorder
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

type Option func(*Pipeline)

// WithConcurrency 同时处理的邮件数上限
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithDeduper(d Deduper) Option {
	return func(p *Pipeline) { p.deduper = d }
}

func WithFailureRecorder(r FailureRecorder) Option {
	return func(p *Pipeline) { p.failures = r }
}

func New(sc Scorer, ex Extractor, sink Sink, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		scorer:      sc,
		extractor:   ex,
		sink:        sink,
		concurrency: DefaultConcurrency,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest 处理一个批次并返回报告。调用方负责在此之前确认 ownerID 存在。
// 单封邮件的任何失败都不会让 Ingest 失败；存储整体不可用时剩余邮件标记为 aborted。
func (p *Pipeline) Ingest(ctx context.Context, ownerID string, msgs []model.RawMessage) *model.BatchReport {
	start := p.now()
	report := model.NewBatchReport(ownerID, start)
	log := logger.WithTrace(ctx, p.logger).With(zap.String("owner_id", ownerID))

	var aborted atomic.Bool
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for _, msg := range msgs {
		g.Go(func() error {
			outcome, acquired := p.process(ctx, ownerID, msg, &aborted, log)
			if errors.Is(outcome.Err, model.ErrSinkUnavailable) {
				report.MarkAborted()
			}
			p.finish(ctx, ownerID, outcome, acquired, log)
			report.Record(outcome)
			return nil
		})
	}
	_ = g.Wait()

	report.Finish(p.now())
	metrics.RecordBatchDuration("pipeline", time.Since(start))

	counts := report.Counts()
	log.Info("Batch ingested",
		zap.Int("messages", len(msgs)),
		zap.Int("persisted", counts[model.StatePersisted]),
		zap.Int("rejected", counts[model.StateRejected]),
		zap.Int("failed", counts[model.StateFailed]),
		zap.Bool("aborted", report.Aborted),
	)
	return report
}

// process 执行单封邮件的完整链路，panic 会被转换成 failed
// acquired 表示本次处理持有了去重锁
func (p *Pipeline) process(ctx context.Context, ownerID string, msg model.RawMessage, aborted *atomic.Bool, log *zap.Logger) (outcome model.MessageOutcome, acquired bool) {
	outcome = model.MessageOutcome{MessageID: msg.ID, State: model.StateFetched}

	defer func() {
		if r := recover(); r != nil {
			outcome.Reason = panicReason(outcome.State)
			outcome.State = model.StateFailed
			outcome.Err = fmt.Errorf("panic: %v", r)
			log.Error("Message processing panic recovered",
				zap.String("message_id", msg.ID),
				zap.Any("panic", r),
			)
		}
	}()

	fail := func(reason string, err error) (model.MessageOutcome, bool) {
		outcome.State = model.StateFailed
		outcome.Reason = reason
		outcome.Err = err
		return outcome, acquired
	}
	reject := func(reason string) (model.MessageOutcome, bool) {
		outcome.State = model.StateRejected
		outcome.Reason = reason
		return outcome, acquired
	}

	if err := ctx.Err(); err != nil {
		return fail(model.ReasonAborted, err)
	}

	clean := normalize.Normalize(msg.RawBody)
	outcome.State = model.StateNormalized
	if clean == "" {
		return reject(model.ReasonEmptyBody)
	}

	outcome.Score = p.scorer.Score(clean)
	outcome.State = model.StateScored
	if !p.scorer.Accept(outcome.Score) {
		log.Info("Skipped message below relevance threshold",
			zap.String("message_id", msg.ID),
			zap.Int("score", outcome.Score),
		)
		return reject(model.ReasonLowScore)
	}

	// 存储已不可用，后续写入不再尝试，也不再调用模型
	if aborted.Load() {
		return fail(model.ReasonAborted, model.ErrSinkUnavailable)
	}

	if p.deduper != nil {
		if !p.deduper.AcquireOnce(ctx, ownerID, msg.ID) {
			return reject(model.ReasonDuplicate)
		}
		acquired = true
	}

	result, err := p.extractor.Extract(ctx, clean)
	if err != nil {
		return fail(model.ReasonExtractionFailed, err)
	}
	outcome.State = model.StateExtracted

	fields, err := parser.Parse(result)
	if err != nil {
		return fail(model.ReasonParseFailed, err)
	}
	outcome.State = model.StateParsed

	if aborted.Load() {
		return fail(model.ReasonAborted, model.ErrSinkUnavailable)
	}

	rec := model.ApplicationRecord{OwnerID: ownerID, ApplicationFields: fields}
	if err := p.sink.InsertApplication(ctx, rec); err != nil {
		if errors.Is(err, model.ErrSinkUnavailable) {
			aborted.Store(true)
		}
		return fail(model.ReasonPersistFailed, err)
	}

	outcome.State = model.StatePersisted
	return outcome, acquired
}

// finish 记录指标；失败的邮件释放去重锁并写入失败记录
func (p *Pipeline) finish(ctx context.Context, ownerID string, o model.MessageOutcome, acquired bool, log *zap.Logger) {
	metrics.IncrementMessageProcessed(string(o.State), o.Reason)

	if o.State != model.StateFailed {
		return
	}

	log.Warn("Message failed",
		zap.String("message_id", o.MessageID),
		zap.String("reason", o.Reason),
		zap.Error(o.Err),
	)

	if acquired {
		p.deduper.Release(ctx, ownerID, o.MessageID)
	}
	if p.failures != nil {
		if err := p.failures.RecordFailure(ctx, ownerID, o); err != nil {
			log.Warn("Failed to record message failure",
				zap.String("message_id", o.MessageID),
				zap.Error(err),
			)
		}
	}
}

func panicReason(state model.MessageState) string {
	switch state {
	case model.StateFetched:
		return model.ReasonNormalizePanic
	case model.StateNormalized, model.StateScored:
		return model.ReasonExtractionFailed
	case model.StateExtracted:
		return model.ReasonParseFailed
	default:
		return model.ReasonPersistFailed
	}
}
