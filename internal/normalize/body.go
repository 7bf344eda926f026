package normalize

import (
	"encoding/base64"
	"strings"
)

const (
	mimeTextPlain            = "text/plain"
	mimeMultipartAlternative = "multipart/alternative"
)

// Part 邮件 MIME 结构的一个节点，Data 为 base64url 编码
type Part struct {
	MimeType string
	Data     string
	Parts    []Part
}

// BodyText 拼接所有 text/plain 子部件，multipart/alternative 只展开一层。
// 没有子部件时直接解码正文。
func BodyText(p Part) string {
	if len(p.Parts) == 0 {
		return decode(p.Data)
	}

	var b strings.Builder
	for _, part := range p.Parts {
		switch {
		case isMime(part.MimeType, mimeTextPlain):
			b.WriteString(decode(part.Data))
		case isMime(part.MimeType, mimeMultipartAlternative):
			for _, sub := range part.Parts {
				if isMime(sub.MimeType, mimeTextPlain) {
					b.WriteString(decode(sub.Data))
				}
			}
		}
	}
	return b.String()
}

func isMime(got, want string) bool {
	return strings.EqualFold(strings.TrimSpace(got), want)
}

// decode 兼容有无 padding 的 base64url 以及标准 base64，解码失败返回空串
func decode(data string) string {
	if data == "" {
		return ""
	}
	trimmed := strings.TrimRight(data, "=")
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.RawStdEncoding} {
		if out, err := enc.DecodeString(trimmed); err == nil {
			return string(out)
		}
	}
	return ""
}
