package config

import "os"

const (
	// DefaultEnvironment is the deployment environment whose tagged model
	// counts as "active" when resolving which model a log belongs to.
	DefaultEnvironment = "production"

	// UnavailableModelName is the sentinel a log is attributed to when the
	// whole resolution fallback chain comes up empty. Logs are never left
	// without a model.
	UnavailableModelName = "unavailable"

	// IntentMessagePrefix marks raw-intent messages like "/greet". Such
	// messages always count as covered by training data.
	IntentMessagePrefix = "/"

	// DefaultProject is used when an inbound event carries no project.
	DefaultProject = "default"
)

// Config holds the runtime settings for the conversation backend. Values
// come from the environment; the named constants above are the defaults.
type Config struct {
	Port                 string
	DefaultProject       string
	DefaultEnvironment   string
	UnavailableModelName string
	IntentMessagePrefix  string
}

// Load reads the configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:                 envOr("PORT", "8080"),
		DefaultProject:       envOr("DEFAULT_PROJECT", DefaultProject),
		DefaultEnvironment:   envOr("DEFAULT_ENVIRONMENT", DefaultEnvironment),
		UnavailableModelName: UnavailableModelName,
		IntentMessagePrefix:  IntentMessagePrefix,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
