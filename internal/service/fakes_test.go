package service

import (
	"context"
	"sync"
	"time"

	"jobmail/internal/model"
)

type fakeUsers struct {
	mu    sync.Mutex
	known map[string]bool
	err   error
}

func newFakeUsers(ids ...string) *fakeUsers {
	u := &fakeUsers{known: map[string]bool{}}
	for _, id := range ids {
		u.known[id] = true
	}
	return u
}

func (u *fakeUsers) Exists(_ context.Context, id string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.known[id], u.err
}

func (u *fakeUsers) Ensure(_ context.Context, id string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return false, u.err
	}
	if u.known[id] {
		return false, nil
	}
	u.known[id] = true
	return true, nil
}

type fakeFetcher struct {
	owner     string
	err       error
	msgs      []model.RawMessage
	lastLimit int64
}

func (f *fakeFetcher) ResolveOwner(context.Context, string) (string, error) {
	return f.owner, f.err
}

func (f *fakeFetcher) FetchSince(context.Context, string, time.Time) ([]model.RawMessage, error) {
	return f.msgs, f.err
}

func (f *fakeFetcher) FetchYesterday(context.Context, string) ([]model.RawMessage, error) {
	return f.msgs, f.err
}

func (f *fakeFetcher) FetchLatest(_ context.Context, _ string, limit int64) ([]model.RawMessage, error) {
	f.lastLimit = limit
	return f.msgs, f.err
}

type fakeIngester struct {
	owner string
	msgs  []model.RawMessage
}

func (f *fakeIngester) Ingest(_ context.Context, owner string, msgs []model.RawMessage) *model.BatchReport {
	f.owner = owner
	f.msgs = msgs
	r := model.NewBatchReport(owner, time.Now())
	for _, m := range msgs {
		r.Record(model.MessageOutcome{MessageID: m.ID, State: model.StatePersisted})
	}
	return r
}

type fakeApps struct {
	inserted []model.ApplicationRecord
	apps     []model.Application
	results  []string
	err      error
}

func (f *fakeApps) InsertApplication(_ context.Context, rec model.ApplicationRecord) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, rec)
	return nil
}

func (f *fakeApps) ListByOwner(context.Context, string) ([]model.Application, error) {
	return f.apps, f.err
}

func (f *fakeApps) ListResults(context.Context, string) ([]string, error) {
	return f.results, f.err
}

type fakeStats struct {
	saved    *model.Statistics
	byResult model.AppsByResult
}

func (f *fakeStats) Upsert(_ context.Context, s model.Statistics, b model.AppsByResult) error {
	f.saved = &s
	f.byResult = b
	return nil
}

func (f *fakeStats) Get(context.Context, string) (*model.Statistics, model.AppsByResult, error) {
	if f.saved == nil {
		return nil, nil, model.ErrNotFound
	}
	return f.saved, f.byResult, nil
}
