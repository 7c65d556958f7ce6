package bootstrap

import (
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/cfd24/hoyolab-auto/internal/errors"
)

// Constructor builds a session variant from its configuration.
type Constructor[C any, S Session] func(cfg C) (S, error)

// Factory selects a session variant by its type tag. Adding a variant
// means registering one more constructor.
type Factory[C any, S Session] struct {
	mu           sync.RWMutex
	constructors map[string]Constructor[C, S]
}

// NewFactory returns an empty factory.
func NewFactory[C any, S Session]() *Factory[C, S] {
	return &Factory[C, S]{constructors: make(map[string]Constructor[C, S])}
}

// Register adds a constructor for tag. Registering a tag twice panics,
// as it is a programming error.
func (f *Factory[C, S]) Register(tag string, ctor Constructor[C, S]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.constructors[tag]; exists {
		panic(fmt.Sprintf("bootstrap: variant %q registered twice", tag))
	}
	f.constructors[tag] = ctor
}

// Create builds the variant registered for tag. An unknown tag yields an
// UnknownType ConfigError.
func (f *Factory[C, S]) Create(tag string, cfg C) (S, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[tag]
	f.mu.RUnlock()

	if !ok {
		var zero S
		return zero, apperrors.NewConfigError(apperrors.UnknownType, tag,
			fmt.Errorf("no variant registered for type %q", tag))
	}

	s, err := ctor(cfg)
	if err != nil {
		var zero S
		return zero, fmt.Errorf("failed to create %s session: %w", tag, err)
	}
	return s, nil
}

// Tags returns the registered type tags in sorted order.
func (f *Factory[C, S]) Tags() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	tags := make([]string, 0, len(f.constructors))
	for tag := range f.constructors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
