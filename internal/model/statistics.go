package model

import "time"

// 结果分类
const (
	BucketPassed   = "passed"
	BucketRejected = "rejected"
	BucketPending  = "pending"
)

// Statistics 用户的求职统计
type Statistics struct {
	OwnerID          string    `json:"-"`
	TotalApps        int       `json:"total_apps"`
	TotalPendingApps int       `json:"total_pending_apps"`
	PassRate         float64   `json:"pass_rate"`
	UpdatedAt        time.Time `json:"-"`
}

// AppsByResult 分类 -> 数量
type AppsByResult map[string]int
