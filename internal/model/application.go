package model

import "time"

// EmptyField 模型输出里缺失字段的占位符
const EmptyField = "(empty)"

// FieldCount 抽取结果固定的字段数量
const FieldCount = 8

// ApplicationFields 抽取结果按位置解析出的字段，顺序固定
type ApplicationFields struct {
	Company           string `json:"company"`
	Position          string `json:"position"`
	InterviewType     string `json:"interview_type"`
	PreviousInterview string `json:"previous_interview"`
	Result            string `json:"result"`
	Interviewers      string `json:"interviewers"`
	SubmissionDate    string `json:"submission_date"`
	RecentDate        string `json:"recent_date"`
}

// Values 按导出列顺序返回字段
func (f ApplicationFields) Values() []string {
	return []string{
		f.Company,
		f.Position,
		f.InterviewType,
		f.PreviousInterview,
		f.Result,
		f.Interviewers,
		f.SubmissionDate,
		f.RecentDate,
	}
}

// ApplicationRecord 一条持久化的求职记录
type ApplicationRecord struct {
	OwnerID string `json:"owner_id"`
	ApplicationFields
}

// Application applications 表中的一行
type Application struct {
	AppID     int64
	OwnerID   string
	CreatedAt time.Time
	ApplicationFields
}
