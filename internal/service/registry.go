package service

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/kursadbilgin/mimi-dispatch/internal/domain"
	"github.com/kursadbilgin/mimi-dispatch/internal/mailer"
)

// deliverPrefix is accepted in front of an action name so "deliver_mimi_welcome"
// and "mimi_welcome" resolve to the same action.
const deliverPrefix = "deliver_"

var actionNamePattern = regexp.MustCompile(`^` + mailer.ActionPrefix + `[_a-z]\w*$`)

// Params are caller-supplied inputs handed to a ComposeFunc.
type Params map[string]string

// ComposeFunc builds the message for one delivery action.
type ComposeFunc func(ctx context.Context, params Params) (*domain.OutgoingMessage, error)

// Registry maps delivery action names to their composers. Names are checked
// when registered, not when delivered.
type Registry struct {
	mu        sync.RWMutex
	composers map[string]ComposeFunc
}

func NewRegistry() *Registry {
	return &Registry{composers: make(map[string]ComposeFunc)}
}

// Register binds compose to action. The name, with or without the deliver_
// prefix, must match mimi_[_a-z]\w*; duplicates are rejected.
func (r *Registry) Register(action string, compose ComposeFunc) error {
	name := NormalizeAction(action)
	if !actionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidAction, action, actionNamePattern)
	}
	if compose == nil {
		return fmt.Errorf("%w: %q has no composer", ErrInvalidAction, action)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.composers[name]; exists {
		return fmt.Errorf("%w: %q is already registered", ErrInvalidAction, name)
	}
	r.composers[name] = compose
	return nil
}

// MustRegister is Register for startup wiring; it panics on error.
func (r *Registry) MustRegister(action string, compose ComposeFunc) {
	if err := r.Register(action, compose); err != nil {
		panic(err)
	}
}

// Lookup accepts the action with or without the deliver_ prefix.
func (r *Registry) Lookup(action string) (ComposeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	compose, ok := r.composers[NormalizeAction(action)]
	return compose, ok
}

// Actions returns the registered action names in sorted order.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.composers))
	for name := range r.composers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NormalizeAction strips surrounding space and a leading deliver_, so
// "deliver_mimi_welcome" and "mimi_welcome" name the same action.
func NormalizeAction(action string) string {
	return strings.TrimPrefix(strings.TrimSpace(action), deliverPrefix)
}
