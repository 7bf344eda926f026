// Package normalize 把邮件正文清洗成单行纯 ASCII 文本
package normalize

import (
	"regexp"
	"strings"
)

var (
	urlPattern = regexp.MustCompile(`https?://\S+`)
	// 只匹配标签形状的片段，"5 < 10 and 20 > 3" 这类比较号保留
	tagPattern = regexp.MustCompile(`</?[A-Za-z!][^<>]*>`)

	entityReplacer = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&#39;", "'",
	)

	parenRemover = strings.NewReplacer("(", "", ")", "")
)

// Normalize 清洗正文，对任意输入都返回结果，且 Normalize(Normalize(x)) == Normalize(x)
func Normalize(raw string) string {
	s := raw
	// 每一轮只会缩短或替换空白，反复执行直到不再变化
	for {
		next := pass(s)
		if next == s {
			return s
		}
		s = next
	}
}

func pass(s string) string {
	s = urlPattern.ReplaceAllString(s, "")
	s = tagPattern.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	s = strings.Map(asciiRune, s)
	s = strings.Join(strings.Fields(s), " ")
	s = parenRemover.Replace(s)
	return strings.TrimSpace(s)
}

// asciiRune 弯引号转成直撇号，保留可打印 ASCII 和空白，其余丢弃
func asciiRune(r rune) rune {
	switch r {
	case '‘', '’', '“', '”':
		return '\''
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return r
	}
	if r < 0x20 || r > 0x7E {
		return -1
	}
	return r
}
