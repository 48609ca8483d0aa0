package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ChatChanged is true if any field of the chat block changed. The chat
	// pipeline re-reads its settings per request, so these apply without restart.
	ChatChanged bool
	NewChat     ChatConfig
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; provider,
// storage, and listener changes still require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Chat != new.Chat {
		d.ChatChanged = true
		d.NewChat = new.Chat
	}

	return d
}
