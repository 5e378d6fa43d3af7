package chat

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Picker returns an index in [0, n). Tests inject a deterministic one.
type Picker func(n int) int

// UniformPicker picks uniformly at random.
func UniformPicker(n int) int {
	return rand.IntN(n)
}

// Choose returns messages[pick(len(messages))], or "" for an empty list.
func Choose(messages []string, pick Picker) string {
	if len(messages) == 0 {
		return ""
	}
	if pick == nil {
		pick = UniformPicker
	}
	i := pick(len(messages))
	if i < 0 || i >= len(messages) {
		i = 0
	}
	return messages[i]
}

// Pool is a fixed, ordered list of filler messages.
type Pool struct {
	mu       sync.RWMutex
	messages []string
	pick     Picker
}

// NewPool creates a pool. An empty list falls back to fallback.
func NewPool(messages, fallback []string, pick Picker) *Pool {
	if len(messages) == 0 {
		messages = fallback
	}
	if pick == nil {
		pick = UniformPicker
	}
	return &Pool{messages: slices.Clone(messages), pick: pick}
}

// Pick returns one message.
func (p *Pool) Pick() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Choose(p.messages, p.pick)
}

// Messages returns a copy of the pool's list.
func (p *Pool) Messages() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.messages)
}

func (p *Pool) replace(other *Pool) {
	msgs := other.Messages()
	p.mu.Lock()
	p.messages = msgs
	p.mu.Unlock()
}

// Pools are the two filler lists of the widget.
type Pools struct {
	Errors *Pool
	Pauses *Pool
}

// DefaultPools returns the built-in pools.
func DefaultPools(pick Picker) Pools {
	return Pools{
		Errors: NewPool(DefaultErrorMessages, FallbackErrorMessages, pick),
		Pauses: NewPool(DefaultPauseMessages, FallbackPauseMessages, pick),
	}
}

type poolFile struct {
	Errors []string `yaml:"errors"`
	Pauses []string `yaml:"pauses"`
}

// LoadPools reads pools from a YAML file with "errors" and "pauses" lists.
// An empty list in the file falls back to the one-line default.
func LoadPools(path string, pick Picker) (Pools, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pools{}, fmt.Errorf("read pools file: %w", err)
	}
	var f poolFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Pools{}, fmt.Errorf("parse pools file: %w", err)
	}
	if len(f.Errors) == 0 && len(f.Pauses) == 0 {
		return Pools{}, errors.New("pools file has no messages")
	}
	return Pools{
		Errors: NewPool(f.Errors, FallbackErrorMessages, pick),
		Pauses: NewPool(f.Pauses, FallbackPauseMessages, pick),
	}, nil
}

// Reload re-reads path into the existing pools so controllers holding them
// see the new lists. On error the current lists are kept.
func (p Pools) Reload(path string) error {
	next, err := LoadPools(path, nil)
	if err != nil {
		return err
	}
	p.Errors.replace(next.Errors)
	p.Pauses.replace(next.Pauses)
	return nil
}
