package model

// RawMessage 从邮箱拉取的一封原始邮件，只在一个批次内有效
type RawMessage struct {
	ID        string `json:"id"`
	Recipient string `json:"to"`
	Sender    string `json:"from"`
	RawBody   string `json:"message"`
}

// NormalizedMessage RawBody 被清洗后的邮件
type NormalizedMessage struct {
	ID        string
	Recipient string
	Sender    string
	CleanBody string
}
