package service

import (
	"context"
	"fmt"
	"strings"

	"jobmail/internal/model"
)

var (
	passedMarkers   = []string{"pass", "offer", "accept", "advance", "next round", "moving forward"}
	rejectedMarkers = []string{"reject", "declin", "fail", "not selected", "unfortunately"}
)

// Classify 把模型给出的 result 文本归到 passed / rejected / pending，rejected 优先判断
func Classify(result string) string {
	r := strings.ToLower(strings.TrimSpace(result))
	if r == "" || r == model.EmptyField {
		return model.BucketPending
	}
	for _, m := range rejectedMarkers {
		if strings.Contains(r, m) {
			return model.BucketRejected
		}
	}
	for _, m := range passedMarkers {
		if strings.Contains(r, m) {
			return model.BucketPassed
		}
	}
	return model.BucketPending
}

// Compute 纯函数；没有已决结果时通过率为 0
func Compute(ownerID string, results []string) (model.Statistics, model.AppsByResult) {
	byResult := model.AppsByResult{
		model.BucketPassed:   0,
		model.BucketRejected: 0,
		model.BucketPending:  0,
	}
	for _, r := range results {
		byResult[Classify(r)]++
	}

	stats := model.Statistics{
		OwnerID:          ownerID,
		TotalApps:        len(results),
		TotalPendingApps: byResult[model.BucketPending],
	}
	if decided := byResult[model.BucketPassed] + byResult[model.BucketRejected]; decided > 0 {
		stats.PassRate = float64(byResult[model.BucketPassed]) / float64(decided)
	}
	return stats, byResult
}

type StatsService struct {
	apps  ApplicationStore
	stats StatisticsStore
}

func NewStatsService(apps ApplicationStore, stats StatisticsStore) *StatsService {
	return &StatsService{apps: apps, stats: stats}
}

// Recompute 从 applications 表重新计算并覆盖读模型
func (s *StatsService) Recompute(ctx context.Context, ownerID string) (model.Statistics, model.AppsByResult, error) {
	results, err := s.apps.ListResults(ctx, ownerID)
	if err != nil {
		return model.Statistics{}, nil, err
	}
	stats, byResult := Compute(ownerID, results)
	if err := s.stats.Upsert(ctx, stats, byResult); err != nil {
		return model.Statistics{}, nil, fmt.Errorf("save statistics: %w", err)
	}
	return stats, byResult, nil
}

// Get 读模型中没有该用户时返回 model.ErrNotFound
func (s *StatsService) Get(ctx context.Context, ownerID string) (*model.Statistics, model.AppsByResult, error) {
	return s.stats.Get(ctx, ownerID)
}
