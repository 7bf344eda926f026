// Package parser 把模型返回的逗号分隔行按位置拆成字段
package parser

import (
	"fmt"
	"strings"

	"jobmail/internal/model"
)

// Parse 按逗号切分并 trim 每一段。
// 少于 8 段返回 model.ErrParse；多于 8 段时前 5 个字段按位置取，
// 最后两段分别是 SubmissionDate 和 RecentDate，中间多出来的段并入 Interviewers。
func Parse(result string) (model.ApplicationFields, error) {
	line := firstLine(result)
	if line == "" {
		return model.ApplicationFields{}, fmt.Errorf("%w: empty extraction result", model.ErrParse)
	}

	segments := strings.Split(line, ",")
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}

	n := len(segments)
	if n < model.FieldCount {
		return model.ApplicationFields{}, fmt.Errorf("%w: expected %d fields, got %d", model.ErrParse, model.FieldCount, n)
	}

	return model.ApplicationFields{
		Company:           segments[0],
		Position:          segments[1],
		InterviewType:     segments[2],
		PreviousInterview: segments[3],
		Result:            segments[4],
		Interviewers:      strings.Join(segments[5:n-2], ", "),
		SubmissionDate:    segments[n-2],
		RecentDate:        segments[n-1],
	}, nil
}

// firstLine 跳过空行和 ``` 包裹，返回第一行内容
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		return line
	}
	return ""
}
