package challenge

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// catalogFile is the on-disk challenge catalog format.
type catalogFile struct {
	Challenges []Challenge `yaml:"challenges"`
}

// StaticSource serves challenges from memory.
type StaticSource struct {
	bySlug map[string]Challenge
}

// NewStaticSource creates a source over the given challenges.
// Later entries win when slugs repeat.
func NewStaticSource(challenges ...Challenge) *StaticSource {
	s := &StaticSource{bySlug: make(map[string]Challenge, len(challenges))}
	for _, c := range challenges {
		s.bySlug[c.Slug] = c
	}
	return s
}

// LoadFile reads a YAML challenge catalog and validates every entry.
func LoadFile(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read challenge catalog: %w", err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("decode challenge catalog: %w", err)
	}

	seen := make(map[string]bool, len(cf.Challenges))
	for i := range cf.Challenges {
		c := &cf.Challenges[i]
		if err := validate.Struct(c); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %s", ErrInvalid, i, err)
		}
		if seen[c.Slug] {
			return nil, fmt.Errorf("%w: duplicate slug %q", ErrInvalid, c.Slug)
		}
		seen[c.Slug] = true
	}

	return NewStaticSource(cf.Challenges...), nil
}

// Lookup returns the published challenge with the given slug.
func (s *StaticSource) Lookup(_ context.Context, slug string) (*Challenge, error) {
	c, ok := s.bySlug[slug]
	if !ok || !c.Published {
		return nil, ErrNotFound
	}
	return &c, nil
}

// List returns all challenges ordered by slug.
func (s *StaticSource) List(_ context.Context) ([]Challenge, error) {
	result := make([]Challenge, 0, len(s.bySlug))
	for _, c := range s.bySlug {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Slug < result[j].Slug })
	return result, nil
}
