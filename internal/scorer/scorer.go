// Package scorer 根据关键词给邮件打相关性分
package scorer

import "strings"

var (
	DefaultApplicationWords = []string{
		"application", "interview", "offer", "position", "candidate",
		"resume", "skills", "company", "feedback", "process",
	}
	DefaultNonRelevantWords = []string{
		"advertisement", "promotion", "newsletter", "spam", "solicitation",
	}
)

// Scorer 构造后关键词集合不可变，可并发使用
type Scorer struct {
	weights map[string]int
}

// New 用给定关键词构造 Scorer，空集合时使用默认词表。
// 同一个词同时出现在两个集合中时权重相互抵消。
func New(applicationWords, nonRelevantWords []string) *Scorer {
	if len(applicationWords) == 0 {
		applicationWords = DefaultApplicationWords
	}
	if len(nonRelevantWords) == 0 {
		nonRelevantWords = DefaultNonRelevantWords
	}

	weights := make(map[string]int, len(applicationWords)+len(nonRelevantWords))
	for _, w := range dedupe(applicationWords) {
		weights[w]++
	}
	for _, w := range dedupe(nonRelevantWords) {
		weights[w]--
	}
	return &Scorer{weights: weights}
}

// NewDefault 使用默认词表
func NewDefault() *Scorer {
	return New(nil, nil)
}

func dedupe(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Score 按空白切词，每个命中的关键词 +1 或 -1
func (s *Scorer) Score(clean string) int {
	score := 0
	for _, token := range strings.Fields(strings.ToLower(clean)) {
		score += s.weights[token]
	}
	return score
}

// Accept 分数大于 0 才进入抽取
func (s *Scorer) Accept(score int) bool {
	return score > 0
}
