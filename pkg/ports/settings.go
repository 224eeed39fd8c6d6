package ports

import "context"

// SettingsProvider resolves externally persisted settings by group.
// The engine only consumes resolved values; it never persists settings.
type SettingsProvider interface {
	// Settings returns the key/value pairs of a settings group
	// (e.g. "contact", "chatbot"). Unknown groups yield an empty map.
	Settings(ctx context.Context, group string) (map[string]any, error)
}

// StaticSettings is a fixed in-process SettingsProvider.
type StaticSettings map[string]map[string]any

// Settings implements SettingsProvider.
func (s StaticSettings) Settings(_ context.Context, group string) (map[string]any, error) {
	out := make(map[string]any, len(s[group]))
	for k, v := range s[group] {
		out[k] = v
	}
	return out, nil
}
