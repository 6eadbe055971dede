package sentiment

import (
	"regexp"
	"strings"
)

// DefaultNegativeKeywords - темы, которые отсекаются независимо от оценки тональности.
var DefaultNegativeKeywords = []string{
	"politics", "political", "election", "vote", "government", "parliament", "congress",
	"sex", "sexual", "abuse", "assault",
	"crime", "murder", "killed", "death", "dead", "shooting", "stabbed", "violence", "violent",
	"arrest", "police", "theft", "robbery", "fraud",
	"stock market", "shares", "dow jones", "nasdaq", "finance", "economy", "economic",
	"recession", "inflation", "tariff",
	"war", "conflict", "military", "attack", "bombing", "invasion",
	"disaster", "crash", "crisis", "emergency",
	"protest", "riot",
	"scandal",
}

// Blocklist ищет запрещенные слова и фразы без учета регистра и только по границам слов,
// так что "election" не срабатывает на "selection", а "war" на "warén".
// Границей считается любой символ, кроме буквы, цифры и подчеркивания в Unicode.
type Blocklist struct {
	re *regexp.Regexp
}

// NewBlocklist компилирует список ключевых слов в одно регулярное выражение.
// Пробелы внутри фраз совпадают с любой последовательностью пробельных символов.
func NewBlocklist(keywords []string) *Blocklist {
	alts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		words := strings.Fields(strings.ToLower(kw))
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `\s+`))
	}
	if len(alts) == 0 {
		return &Blocklist{}
	}
	return &Blocklist{re: regexp.MustCompile(
		`(?i)(?:^|[^\p{L}\p{N}_])(` + strings.Join(alts, "|") + `)(?:$|[^\p{L}\p{N}_])`,
	)}
}

// Match возвращает первое найденное ключевое слово.
func (b *Blocklist) Match(text string) (string, bool) {
	if b == nil || b.re == nil || text == "" {
		return "", false
	}
	m := b.re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.ToLower(strings.Join(strings.Fields(m[1]), " ")), true
}
