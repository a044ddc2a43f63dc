// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"context"
	"sync"
)

// ScriptedBackend replays canned responses in order. Used by tests;
// safe for concurrent workers sharing one script.
type ScriptedBackend struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error
	Calls     int
}

// Complete returns the next scripted response or error.
func (s *ScriptedBackend) Complete(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	i := s.Calls
	s.Calls++
	s.mu.Unlock()
	if i < len(s.Errs) && s.Errs[i] != nil {
		return "", s.Errs[i]
	}
	if i < len(s.Responses) {
		return s.Responses[i], nil
	}
	if len(s.Responses) > 0 {
		return s.Responses[len(s.Responses)-1], nil
	}
	return "{}", nil
}
