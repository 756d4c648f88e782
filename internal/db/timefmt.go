package db

import (
	"fmt"
	"time"
)

func parseCreatedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid created_at %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatCreatedAt(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
