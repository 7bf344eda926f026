package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "jobmail/contracts/mq"
	"jobmail/internal/model"
	"jobmail/pkg/mq"
)

type fakeRecomputer struct {
	err    error
	owners []string
}

func (f *fakeRecomputer) Recompute(_ context.Context, owner string) (model.Statistics, model.AppsByResult, error) {
	f.owners = append(f.owners, owner)
	if f.err != nil {
		return model.Statistics{}, nil, f.err
	}
	return model.Statistics{OwnerID: owner, TotalApps: 1}, model.AppsByResult{"pending": 1}, nil
}

type fakeRetries struct {
	counts map[string]int64
	resets int
}

func newFakeRetries() *fakeRetries { return &fakeRetries{counts: map[string]int64{}} }

func (f *fakeRetries) IncrementAndGet(_ context.Context, key string) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRetries) Reset(_ context.Context, key string) error {
	delete(f.counts, key)
	f.resets++
	return nil
}

func payload(t *testing.T, owner string) []byte {
	t.Helper()
	b, err := json.Marshal(mqcontracts.ApplicationRecordedPayload{OwnerID: owner, AppID: 7, Result: "passed", RecordedAt: time.Now()})
	require.NoError(t, err)
	return b
}

func TestHandleRecomputesOwner(t *testing.T) {
	stats := &fakeRecomputer{}
	retries := newFakeRetries()
	h := NewApplicationRecordedHandler(stats, retries, 0, zap.NewNop())

	require.NoError(t, h.Handle(context.Background(), payload(t, "u1")))
	assert.Equal(t, []string{"u1"}, stats.owners)
	assert.Equal(t, 1, retries.resets)
}

func TestHandleBadPayloadDeadLetters(t *testing.T) {
	stats := &fakeRecomputer{}
	h := NewApplicationRecordedHandler(stats, newFakeRetries(), 0, zap.NewNop())

	err := h.Handle(context.Background(), []byte("{not json"))
	assert.ErrorIs(t, err, mq.ErrDeadLetter)

	err = h.Handle(context.Background(), payload(t, ""))
	assert.ErrorIs(t, err, mq.ErrDeadLetter)
	assert.Empty(t, stats.owners)
}

func TestHandleRetriesThenDeadLetters(t *testing.T) {
	connErr := &pgconn.PgError{Code: "08006"}
	stats := &fakeRecomputer{err: connErr}
	retries := newFakeRetries()
	h := NewApplicationRecordedHandler(stats, retries, 2, zap.NewNop())

	for i := 0; i < 2; i++ {
		err := h.Handle(context.Background(), payload(t, "u1"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, mq.ErrDeadLetter)
		assert.ErrorIs(t, err, connErr)
	}

	err := h.Handle(context.Background(), payload(t, "u1"))
	assert.ErrorIs(t, err, mq.ErrDeadLetter)
	assert.ErrorIs(t, err, connErr)
	assert.Empty(t, retries.counts)
}

func TestHandleNonRetryableDeadLettersImmediately(t *testing.T) {
	stats := &fakeRecomputer{err: errors.New("boom")}
	h := NewApplicationRecordedHandler(stats, newFakeRetries(), 5, zap.NewNop())

	err := h.Handle(context.Background(), payload(t, "u1"))
	assert.ErrorIs(t, err, mq.ErrDeadLetter)
	assert.Len(t, stats.owners, 1)
}
