// Package registry хранит каталог RSS-источников, сгруппированных по регионам и категориям.
package registry

import (
	_ "embed"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"brightside/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	CustomRegion    = "custom"
	GeneralCategory = "general"
)

//go:embed feeds.yaml
var catalogYAML []byte

type catalogFile struct {
	Regions []struct {
		Name  string              `yaml:"name"`
		Feeds []domain.FeedSource `yaml:"feeds"`
	} `yaml:"regions"`
}

// Registry - неизменяемый набор источников с индексом по URL.
type Registry struct {
	sources []domain.FeedSource
	byURL   map[string]domain.FeedSource
}

// Default загружает встроенный каталог лент и добавляет к нему extra.
func Default(extra ...domain.FeedSource) (*Registry, error) {
	return Parse(catalogYAML, extra...)
}

// Parse разбирает каталог в YAML-формате. Регион каждой ленты берется из группы,
// пустая категория заменяется на general, пустое имя - на хост URL.
func Parse(data []byte, extra ...domain.FeedSource) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse feed catalog: %w", err)
	}
	var sources []domain.FeedSource
	for _, region := range file.Regions {
		for _, src := range region.Feeds {
			if src.Region == "" {
				src.Region = region.Name
			}
			sources = append(sources, src)
		}
	}
	sources = append(sources, extra...)
	return New(sources)
}

// New строит реестр из списка источников. Повторяющиеся URL отбрасываются,
// сохраняется первое вхождение.
func New(sources []domain.FeedSource) (*Registry, error) {
	r := &Registry{
		byURL: make(map[string]domain.FeedSource, len(sources)),
	}
	for _, src := range sources {
		norm, err := Normalize(src)
		if err != nil {
			return nil, err
		}
		if _, dup := r.byURL[norm.URL]; dup {
			continue
		}
		r.byURL[norm.URL] = norm
		r.sources = append(r.sources, norm)
	}
	return r, nil
}

// Normalize проверяет URL источника и заполняет пустые поля значениями по умолчанию.
func Normalize(src domain.FeedSource) (domain.FeedSource, error) {
	src.URL = strings.TrimSpace(src.URL)
	u, err := url.ParseRequestURI(src.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.FeedSource{}, fmt.Errorf("invalid feed url %q", src.URL)
	}
	if src.Name == "" {
		src.Name = strings.TrimPrefix(u.Hostname(), "www.")
	}
	if src.Region == "" {
		src.Region = CustomRegion
	}
	if src.Category == "" {
		src.Category = GeneralCategory
	}
	src.Region = strings.ToLower(src.Region)
	src.Category = strings.ToLower(src.Category)
	return src, nil
}

// Sources возвращает копию списка источников в порядке каталога.
func (r *Registry) Sources() []domain.FeedSource {
	out := make([]domain.FeedSource, len(r.sources))
	copy(out, r.sources)
	return out
}

// URLs возвращает адреса всех источников.
func (r *Registry) URLs() []string {
	out := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s.URL)
	}
	return out
}

// Lookup ищет источник по URL.
func (r *Registry) Lookup(rawURL string) (domain.FeedSource, bool) {
	src, ok := r.byURL[strings.TrimSpace(rawURL)]
	return src, ok
}

// Resolve превращает список URL в источники. Известные адреса получают
// регион и категорию из каталога, неизвестные - custom/general.
func (r *Registry) Resolve(urls []string) ([]domain.FeedSource, error) {
	out := make([]domain.FeedSource, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		if src, ok := r.byURL[raw]; ok {
			out = append(out, src)
			continue
		}
		src, err := Normalize(domain.FeedSource{URL: raw})
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func (r *Registry) Regions() []string {
	return r.distinct(func(s domain.FeedSource) string { return s.Region })
}

func (r *Registry) Categories() []string {
	return r.distinct(func(s domain.FeedSource) string { return s.Category })
}

func (r *Registry) distinct(key func(domain.FeedSource) string) []string {
	set := make(map[string]struct{})
	for _, s := range r.sources {
		set[key(s)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
