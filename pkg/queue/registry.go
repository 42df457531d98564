package queue

import (
	"errors"
	"sync"
)

var (
	// registry stores the mapping between operation tags and handlers
	registry = make(map[string]Handler)
	mu       sync.RWMutex
)

// Register adds a handler for a given operation tag
func Register(operation string, handler Handler) {
	mu.Lock()
	defer mu.Unlock()
	registry[operation] = handler
}

// GetHandler retrieves a handler by operation tag
func GetHandler(operation string) (Handler, error) {
	mu.RLock()
	defer mu.RUnlock()
	if handler, ok := registry[operation]; ok {
		return handler, nil
	}
	return nil, errors.New("handler not found: " + operation)
}
