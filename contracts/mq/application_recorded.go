package mq

import "time"

const RoutingKeyApplicationRecorded = "application.recorded"

// ApplicationRecordedPayload 一条求职记录写入成功后发布的事件
type ApplicationRecordedPayload struct {
	OwnerID    string    `json:"owner_id"`
	AppID      int64     `json:"app_id"`
	Result     string    `json:"result"`
	TraceID    string    `json:"trace_id,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}
