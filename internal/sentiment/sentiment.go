// Package sentiment оценивает позитивность новостей по словарю VADER
// и отбирает материалы, превышающие порог.
package sentiment

import (
	"strings"
	"sync"

	"brightside/internal/domain"

	"github.com/jonreiter/govader"
)

// Scorer возвращает составную оценку тональности текста в диапазоне [-1, 1].
type Scorer interface {
	Score(text string) float64
}

// VaderScorer - Scorer на основе фиксированного словаря VADER.
type VaderScorer struct {
	mu       sync.Mutex
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVaderScorer создает оценщик со встроенным словарем VADER.
func NewVaderScorer() *VaderScorer {
	return &VaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score возвращает compound-оценку VADER. Пустой текст нейтрален.
func (v *VaderScorer) Score(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.analyzer.PolarityScores(text).Compound
}

// Reason объясняет решение фильтра.
type Reason string

const (
	ReasonKept           Reason = "kept"
	ReasonRemoved        Reason = "removed"
	ReasonKeyword        Reason = "keyword"
	ReasonBelowThreshold Reason = "below_threshold"
)

// Decision - результат оценки одной новости.
type Decision struct {
	Keep    bool
	Score   float64
	Reason  Reason
	Keyword string
}

// Filter отбирает позитивные новости: без запрещенных слов в заголовке и аннотации
// и с оценкой строго выше порога.
type Filter struct {
	scorer    Scorer
	blocklist *Blocklist
	threshold float64
}

// NewFilter создает фильтр с порогом threshold. Новость проходит при оценке строго выше порога.
func NewFilter(scorer Scorer, blocklist *Blocklist, threshold float64) *Filter {
	return &Filter{
		scorer:    scorer,
		blocklist: blocklist,
		threshold: threshold,
	}
}

// Threshold возвращает порог позитивности.
func (f *Filter) Threshold() float64 { return f.threshold }

// Evaluate оценивает новость. Решение детерминировано для одного и того же
// текста, словаря и порога.
func (f *Filter) Evaluate(item domain.Item) Decision {
	if kw, ok := f.blocklist.Match(item.Title); ok {
		return Decision{Reason: ReasonKeyword, Keyword: kw}
	}
	if kw, ok := f.blocklist.Match(item.Description); ok {
		return Decision{Reason: ReasonKeyword, Keyword: kw}
	}
	score := f.scorer.Score(Text(item))
	if score > f.threshold {
		return Decision{Keep: true, Score: score, Reason: ReasonKept}
	}
	return Decision{Score: score, Reason: ReasonBelowThreshold}
}

// Text собирает текст для оценки: заголовок и аннотация через точку.
func Text(item domain.Item) string {
	if item.Description == "" {
		return item.Title
	}
	return item.Title + ". " + item.Description
}
