package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
)

// Validator is implemented by configuration types that check their own values.
// Load and ForceReloadConfig call it after parsing and never cache a value
// that fails validation.
type Validator interface {
	Validate() error
}

// entry holds the parsed value of one configuration type.
// Its mutex serialises the first parse, so concurrent callers parse once.
type entry struct {
	mu     sync.Mutex
	loaded bool
	value  any
}

type cache struct {
	mu      sync.Mutex
	entries map[reflect.Type]*entry
}

var values = &cache{entries: make(map[reflect.Type]*entry)}

func (c *cache) get(t reflect.Type) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[t]
	if !ok {
		e = &entry{}
		c.entries[t] = e
	}
	return e
}

func (c *cache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[reflect.Type]*entry)
}

// Load parses environment variables into v by its `env` tags.
// Each configuration type is parsed once and later calls return the cached
// copy. A failed parse or validation is not cached, so the next call tries again.
//
//	var cfg twofactor.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	loadDefaultEnvFiles()

	e := values.get(reflect.TypeFor[T]())
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		fresh, err := parse[T]()
		if err != nil {
			return err
		}
		e.value, e.loaded = fresh, true
	}

	*v = e.value.(T)
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
}

// ForceReloadConfig re-parses the environment into v and replaces the cached copy.
// On failure the cached copy is left untouched.
func ForceReloadConfig[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	fresh, err := parse[T]()
	if err != nil {
		return err
	}

	e := values.get(reflect.TypeFor[T]())
	e.mu.Lock()
	e.value, e.loaded = fresh, true
	e.mu.Unlock()

	*v = fresh
	return nil
}

// ResetCache drops every cached configuration so the next Load parses the environment again.
func ResetCache() {
	values.reset()
}

func parse[T any]() (T, error) {
	var fresh T
	if err := env.Parse(&fresh); err != nil {
		return fresh, errors.Join(ErrParsingConfig, err)
	}

	var validator Validator
	if val, ok := any(fresh).(Validator); ok {
		validator = val
	} else if val, ok := any(&fresh).(Validator); ok {
		validator = val
	}
	if validator != nil {
		if err := validator.Validate(); err != nil {
			return fresh, errors.Join(ErrInvalidConfig, err)
		}
	}
	return fresh, nil
}
