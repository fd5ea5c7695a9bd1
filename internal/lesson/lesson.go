// Package lesson loads segmented lessons from a YAML file.
package lesson

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/danieldreier/hanzi-srs/internal/srs"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Lesson is one segmented text.
type Lesson struct {
	ID       string        `yaml:"id" json:"id" validate:"required"`
	Title    string        `yaml:"title" json:"title"`
	Segments []srs.Segment `yaml:"segments" json:"segments" validate:"dive"`
}

// File is the on-disk layout of a lesson file.
type File struct {
	Lessons []Lesson `yaml:"lessons" validate:"dive"`
}

// Source provides the segments of a lesson by id.
type Source interface {
	Segments(ctx context.Context, sourceID string) (Lesson, error)
	List() []Lesson
}

// FileSource serves lessons read from a YAML file.
type FileSource struct {
	path     string
	logger   *zap.Logger
	validate *validator.Validate

	mu      sync.RWMutex
	lessons []Lesson
	byID    map[string]int
}

var _ Source = (*FileSource)(nil)

// NewFileSource returns a source for the file at path. Call Load before use.
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{
		path:     path,
		logger:   logger.Named("lesson"),
		validate: validator.New(),
		byID:     map[string]int{},
	}
}

// Load reads and validates the lesson file. A missing file yields an empty source.
func (s *FileSource) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Warn("lesson file not found", zap.String("path", s.path))
		s.set(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read lesson file: %w", err)
	}

	lessons, err := s.parse(data)
	if err != nil {
		return fmt.Errorf("lesson file %s: %w", s.path, err)
	}
	s.set(lessons)
	s.logger.Debug("lessons loaded", zap.String("path", s.path), zap.Int("lessons", len(lessons)))
	return nil
}

func (s *FileSource) parse(data []byte) ([]Lesson, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	if err := s.validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	seen := make(map[string]bool, len(f.Lessons))
	for _, l := range f.Lessons {
		if seen[l.ID] {
			return nil, fmt.Errorf("duplicate lesson id %q", l.ID)
		}
		seen[l.ID] = true
	}
	return f.Lessons, nil
}

func (s *FileSource) set(lessons []Lesson) {
	byID := make(map[string]int, len(lessons))
	for i, l := range lessons {
		byID[l.ID] = i
	}
	s.mu.Lock()
	s.lessons = lessons
	s.byID = byID
	s.mu.Unlock()
}

// Segments returns the lesson with the given id.
func (s *FileSource) Segments(ctx context.Context, sourceID string) (Lesson, error) {
	if err := ctx.Err(); err != nil {
		return Lesson{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[sourceID]
	if !ok {
		return Lesson{}, srs.NewError(srs.KindNotFound, "lesson", srs.ErrSourceNotFound,
			"no lesson with id %q", sourceID)
	}
	l := s.lessons[i]
	l.Segments = append([]srs.Segment(nil), l.Segments...)
	return l, nil
}

// List returns all lessons in file order.
func (s *FileSource) List() []Lesson {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Lesson, len(s.lessons))
	copy(out, s.lessons)
	return out
}
