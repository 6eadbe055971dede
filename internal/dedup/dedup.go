// Package dedup убирает повторы одной и той же новости, пришедшей из разных лент.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"brightside/internal/domain"
)

const summaryPrefixRunes = 100

// Normalize приводит текст к нижнему регистру, удаляет пунктуацию и схлопывает пробелы.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Signature - хэш нормализованного заголовка и первых 100 символов аннотации.
func Signature(item domain.Item) string {
	sig := Normalize(item.Title)
	if summary := []rune(Normalize(item.Description)); len(summary) > 0 {
		if len(summary) > summaryPrefixRunes {
			summary = summary[:summaryPrefixRunes]
		}
		sig += string(summary)
	}
	sum := sha256.Sum256([]byte(sig))
	return hex.EncodeToString(sum[:16])
}

// Result описывает итог дедупликации.
type Result struct {
	Items   []domain.Item
	Removed int
}

// Items удаляет дубликаты по ссылке и по содержимому. Из группы дублей остается
// новость с большей оценкой тональности, при равенстве - встреченная первой.
// Порядок оставшихся новостей соответствует позиции первого вхождения группы.
func Items(items []domain.Item) Result {
	out := make([]domain.Item, 0, len(items))
	bySig := make(map[string]int, len(items))
	byLink := make(map[string]int, len(items))
	removed := 0
	for _, item := range items {
		sig := Signature(item)
		idx, dup := byLink[item.Link]
		if !dup {
			idx, dup = bySig[sig]
		}
		if !dup {
			bySig[sig] = len(out)
			byLink[item.Link] = len(out)
			out = append(out, item)
			continue
		}
		removed++
		if item.Score > out[idx].Score {
			out[idx] = item
			bySig[sig] = idx
			byLink[item.Link] = idx
		}
	}
	return Result{Items: out, Removed: removed}
}
