package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"jobmail/internal/model"
	"jobmail/internal/scorer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const goodLine = "Acme, Backend Engineer, phone, no, passed, Jane Doe, 01-02-2024, 01-10-2024"

// fakeExtractor 按正文中的标记返回结果
type fakeExtractor struct {
	mu       sync.Mutex
	bodies   []string
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeExtractor) Extract(ctx context.Context, clean string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.maxSeen.Load()
		if n <= old || f.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}

	f.mu.Lock()
	f.bodies = append(f.bodies, clean)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	switch {
	case strings.Contains(clean, "BOOM"):
		return "", fmt.Errorf("%w: upstream 500", model.ErrExtraction)
	case strings.Contains(clean, "PANIC"):
		panic("extractor exploded")
	case strings.Contains(clean, "SHORT"):
		return "Acme, Backend Engineer", nil
	}
	return goodLine, nil
}

func (f *fakeExtractor) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}

type fakeSink struct {
	mu      sync.Mutex
	records []model.ApplicationRecord
	err     error
}

func (s *fakeSink) InsertApplication(_ context.Context, rec model.ApplicationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

type fakeDeduper struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func newFakeDeduper(held ...string) *fakeDeduper {
	d := &fakeDeduper{held: map[string]bool{}}
	for _, id := range held {
		d.held["u1/"+id] = true
	}
	return d
}

func (d *fakeDeduper) AcquireOnce(_ context.Context, owner, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := owner + "/" + id
	if d.held[key] {
		return false
	}
	d.held[key] = true
	return true
}

func (d *fakeDeduper) Release(_ context.Context, owner, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.held, owner+"/"+id)
	d.released = append(d.released, id)
}

type fakeFailures struct {
	mu       sync.Mutex
	outcomes []model.MessageOutcome
}

func (f *fakeFailures) RecordFailure(_ context.Context, _ string, o model.MessageOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, o)
	return nil
}

func msg(id, body string) model.RawMessage {
	return model.RawMessage{ID: id, Recipient: "me@example.com", Sender: "hr@acme.com", RawBody: body}
}

var outcomeOpts = cmp.Options{
	cmpopts.IgnoreFields(model.MessageOutcome{}, "Err", "Error"),
	cmpopts.SortSlices(func(a, b model.MessageOutcome) bool { return a.MessageID < b.MessageID }),
}

func newPipeline(ex Extractor, sink Sink, opts ...Option) *Pipeline {
	return New(scorer.NewDefault(), ex, sink, zap.NewNop(), opts...)
}

func TestIngestBatchIsolation(t *testing.T) {
	ex := &fakeExtractor{}
	sink := &fakeSink{}
	failures := &fakeFailures{}
	p := newPipeline(ex, sink, WithFailureRecorder(failures))

	report := p.Ingest(context.Background(), "u1", []model.RawMessage{
		msg("m1", "Your interview feedback on the position"),
		msg("m2", "Your interview feedback BOOM"),
		msg("m3", "Thanks for your application to our company"),
	})

	want := []model.MessageOutcome{
		{MessageID: "m1", State: model.StatePersisted, Score: 3},
		{MessageID: "m2", State: model.StateFailed, Score: 2, Reason: model.ReasonExtractionFailed},
		{MessageID: "m3", State: model.StatePersisted, Score: 2},
	}
	if diff := cmp.Diff(want, report.Outcomes, outcomeOpts); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}

	assert.False(t, report.Aborted)
	assert.Len(t, sink.records, 2)
	require.Len(t, failures.outcomes, 1)
	assert.Equal(t, "m2", failures.outcomes[0].MessageID)
	assert.ErrorIs(t, failures.outcomes[0].Err, model.ErrExtraction)

	o, ok := report.Outcome("m2")
	require.True(t, ok)
	assert.Contains(t, o.Error, "upstream 500")
}

func TestIngestEndToEnd(t *testing.T) {
	ex := &fakeExtractor{}
	sink := &fakeSink{}
	p := newPipeline(ex, sink)

	report := p.Ingest(context.Background(), "u1", []model.RawMessage{
		msg("m1", "<p>Congrats! Your interview with Acme for Backend Engineer passed.</p>"),
	})

	assert.Equal(t, []string{"Congrats! Your interview with Acme for Backend Engineer passed."}, ex.calls())
	assert.Equal(t, map[model.MessageState]int{model.StatePersisted: 1}, report.Counts())

	want := []model.ApplicationRecord{{
		OwnerID: "u1",
		ApplicationFields: model.ApplicationFields{
			Company:           "Acme",
			Position:          "Backend Engineer",
			InterviewType:     "phone",
			PreviousInterview: "no",
			Result:            "passed",
			Interviewers:      "Jane Doe",
			SubmissionDate:    "01-02-2024",
			RecentDate:        "01-10-2024",
		},
	}}
	if diff := cmp.Diff(want, sink.records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestIngestRejectsWithoutExtraction(t *testing.T) {
	ex := &fakeExtractor{}
	sink := &fakeSink{}
	p := newPipeline(ex, sink, WithDeduper(newFakeDeduper("dup")))

	report := p.Ingest(context.Background(), "u1", []model.RawMessage{
		msg("spam", "This application is a promotion spam newsletter"),
		msg("empty", "<div>   </div>"),
		msg("dup", "Your interview feedback on the position"),
	})

	want := []model.MessageOutcome{
		{MessageID: "dup", State: model.StateRejected, Score: 3, Reason: model.ReasonDuplicate},
		{MessageID: "empty", State: model.StateRejected, Reason: model.ReasonEmptyBody},
		{MessageID: "spam", State: model.StateRejected, Score: -2, Reason: model.ReasonLowScore},
	}
	if diff := cmp.Diff(want, report.Outcomes, outcomeOpts); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, ex.calls())
	assert.Empty(t, sink.records)
}

func TestIngestParseFailureReleasesDedup(t *testing.T) {
	dedup := newFakeDeduper()
	failures := &fakeFailures{}
	sink := &fakeSink{}
	p := newPipeline(&fakeExtractor{}, sink, WithDeduper(dedup), WithFailureRecorder(failures))

	report := p.Ingest(context.Background(), "u1", []model.RawMessage{
		msg("m1", "interview SHORT"),
	})

	o, ok := report.Outcome("m1")
	require.True(t, ok)
	assert.Equal(t, model.StateFailed, o.State)
	assert.Equal(t, model.ReasonParseFailed, o.Reason)
	assert.ErrorIs(t, o.Err, model.ErrParse)
	assert.Empty(t, sink.records)
	assert.Equal(t, []string{"m1"}, dedup.released)
	assert.Len(t, failures.outcomes, 1)
}

func TestIngestSinkUnavailableAborts(t *testing.T) {
	ex := &fakeExtractor{}
	sink := &fakeSink{err: fmt.Errorf("insert: %w", model.ErrSinkUnavailable)}
	dedup := newFakeDeduper()
	p := newPipeline(ex, sink, WithConcurrency(1), WithDeduper(dedup))

	report := p.Ingest(context.Background(), "u1", []model.RawMessage{
		msg("m1", "interview one"),
		msg("m2", "interview two"),
		msg("m3", "interview three"),
	})

	want := []model.MessageOutcome{
		{MessageID: "m1", State: model.StateFailed, Score: 1, Reason: model.ReasonPersistFailed},
		{MessageID: "m2", State: model.StateFailed, Score: 1, Reason: model.ReasonAborted},
		{MessageID: "m3", State: model.StateFailed, Score: 1, Reason: model.ReasonAborted},
	}
	if diff := cmp.Diff(want, report.Outcomes, outcomeOpts); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, report.Aborted)
	assert.Len(t, ex.calls(), 1)
	// 只释放自己持有的锁
	assert.Equal(t, []string{"m1"}, dedup.released)
}

func TestIngestSinkOutageKeepsRejections(t *testing.T) {
	sink := &fakeSink{err: fmt.Errorf("insert: %w", model.ErrSinkUnavailable)}
	p := newPipeline(&fakeExtractor{}, sink, WithConcurrency(1))

	report := p.Ingest(context.Background(), "u1", []model.RawMessage{
		msg("m1", "interview one"),
		msg("m2", "promotion spam newsletter"),
		msg("m3", ""),
	})

	want := []model.MessageOutcome{
		{MessageID: "m1", State: model.StateFailed, Score: 1, Reason: model.ReasonPersistFailed},
		{MessageID: "m2", State: model.StateRejected, Score: -3, Reason: model.ReasonLowScore},
		{MessageID: "m3", State: model.StateRejected, Reason: model.ReasonEmptyBody},
	}
	if diff := cmp.Diff(want, report.Outcomes, outcomeOpts); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, report.Aborted)
}

func TestIngestPersistErrorDoesNotAbort(t *testing.T) {
	sink := &fakeSink{err: fmt.Errorf("%w: unique violation", model.ErrPersistence)}
	p := newPipeline(&fakeExtractor{}, sink, WithConcurrency(1))

	report := p.Ingest(context.Background(), "u1", []model.RawMessage{
		msg("m1", "interview one"),
		msg("m2", "interview two"),
	})

	assert.False(t, report.Aborted)
	assert.Equal(t, map[model.MessageState]int{model.StateFailed: 2}, report.Counts())
	for _, o := range report.Outcomes {
		assert.Equal(t, model.ReasonPersistFailed, o.Reason)
	}
}

func TestIngestRecoversPanic(t *testing.T) {
	p := newPipeline(&fakeExtractor{}, &fakeSink{})

	report := p.Ingest(context.Background(), "u1", []model.RawMessage{
		msg("m1", "interview PANIC"),
		msg("m2", "interview fine"),
	})

	o, _ := report.Outcome("m1")
	assert.Equal(t, model.StateFailed, o.State)
	assert.Equal(t, model.ReasonExtractionFailed, o.Reason)
	assert.Contains(t, o.Error, "extractor exploded")

	o, _ = report.Outcome("m2")
	assert.Equal(t, model.StatePersisted, o.State)
}

func TestIngestConcurrencyCap(t *testing.T) {
	ex := &fakeExtractor{delay: 10 * time.Millisecond}
	p := newPipeline(ex, &fakeSink{}, WithConcurrency(3))

	msgs := make([]model.RawMessage, 20)
	for i := range msgs {
		msgs[i] = msg(fmt.Sprintf("m%02d", i), "interview update")
	}

	report := p.Ingest(context.Background(), "u1", msgs)

	assert.Len(t, report.Outcomes, 20)
	assert.LessOrEqual(t, ex.maxSeen.Load(), int32(3))
	assert.Equal(t, 20, report.Counts()[model.StatePersisted])
}

func TestIngestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := &fakeExtractor{}
	report := newPipeline(ex, &fakeSink{}).Ingest(ctx, "u1", []model.RawMessage{
		msg("m1", "interview"),
	})

	o, _ := report.Outcome("m1")
	assert.Equal(t, model.ReasonAborted, o.Reason)
	assert.True(t, errors.Is(o.Err, context.Canceled))
	assert.Empty(t, ex.calls())
	// 存储正常，批次不算中止
	assert.False(t, report.Aborted)
}

func TestIngestEmptyBatch(t *testing.T) {
	report := newPipeline(&fakeExtractor{}, &fakeSink{}).Ingest(context.Background(), "u1", nil)
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, "u1", report.OwnerID)
}
