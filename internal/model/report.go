package model

import (
	"sync"
	"time"
)

// MessageState 单封邮件在流水线中的状态
type MessageState string

const (
	StateFetched    MessageState = "fetched"
	StateNormalized MessageState = "normalized"
	StateScored     MessageState = "scored"
	StateRejected   MessageState = "rejected"
	StateExtracted  MessageState = "extracted"
	StateParsed     MessageState = "parsed"
	StatePersisted  MessageState = "persisted"
	StateFailed     MessageState = "failed"
)

// Terminal rejected / persisted / failed 是终态
func (s MessageState) Terminal() bool {
	return s == StateRejected || s == StatePersisted || s == StateFailed
}

// 失败或跳过的原因
const (
	ReasonNormalizePanic   = "normalize_panic"
	ReasonExtractionFailed = "extraction_failed"
	ReasonParseFailed      = "parse_failed"
	ReasonPersistFailed    = "persist_failed"
	ReasonDuplicate        = "duplicate"
	ReasonLowScore         = "low_score"
	ReasonEmptyBody        = "empty_body"
	ReasonAborted          = "aborted"
)

// MessageOutcome 单封邮件的处理结果
type MessageOutcome struct {
	MessageID string       `json:"message_id"`
	State     MessageState `json:"state"`
	Score     int          `json:"score"`
	Reason    string       `json:"reason,omitempty"`
	Err       error        `json:"-"`
	Error     string       `json:"error,omitempty"`
}

// BatchReport 一个批次所有邮件的处理结果，Record 可并发调用
type BatchReport struct {
	OwnerID    string           `json:"owner_id"`
	Outcomes   []MessageOutcome `json:"outcomes"`
	Aborted    bool             `json:"aborted"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`

	mu sync.Mutex
}

func NewBatchReport(ownerID string, startedAt time.Time) *BatchReport {
	return &BatchReport{
		OwnerID:   ownerID,
		Outcomes:  []MessageOutcome{},
		StartedAt: startedAt,
	}
}

// Record 追加一条结果
func (r *BatchReport) Record(o MessageOutcome) {
	if o.Err != nil && o.Error == "" {
		o.Error = o.Err.Error()
	}
	r.mu.Lock()
	r.Outcomes = append(r.Outcomes, o)
	r.mu.Unlock()
}

// MarkAborted 标记批次因存储不可用而中止
func (r *BatchReport) MarkAborted() {
	r.mu.Lock()
	r.Aborted = true
	r.mu.Unlock()
}

// Finish 记录结束时间
func (r *BatchReport) Finish(at time.Time) {
	r.mu.Lock()
	r.FinishedAt = at
	r.mu.Unlock()
}

// Counts 按终态统计数量
func (r *BatchReport) Counts() map[MessageState]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[MessageState]int, 3)
	for _, o := range r.Outcomes {
		counts[o.State]++
	}
	return counts
}

// Outcome 按邮件 ID 查找结果
func (r *BatchReport) Outcome(messageID string) (MessageOutcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.Outcomes {
		if o.MessageID == messageID {
			return o, true
		}
	}
	return MessageOutcome{}, false
}
