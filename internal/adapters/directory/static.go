package directory

import (
	"context"
	"encoding/json"
	"fmt"
)

// Static is a fixed actor table, loaded from configuration. It backs
// deployments that have no directory service.
type Static struct{ names map[string]string }

func NewStatic(names map[string]string) *Static {
	if names == nil {
		names = map[string]string{}
	}
	return &Static{names: names}
}

// ParseStatic builds a Static from a JSON object of id→name pairs, the
// DIRECTORY_JSON format.
func ParseStatic(raw string) (*Static, error) {
	names := map[string]string{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return nil, fmt.Errorf("parse directory JSON: %w", err)
		}
	}
	return NewStatic(names), nil
}

func (s *Static) DisplayName(_ context.Context, actorID string) (string, error) {
	if n, ok := s.names[actorID]; ok {
		return n, nil
	}
	return "", ErrNotFound
}
