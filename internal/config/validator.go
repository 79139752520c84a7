package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "classifier.window_size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// regexPatternPrefix marks a pattern string as a regular expression.
// Must match profile.RegexPrefix (defined separately to keep this
// package free of internal imports).
const regexPatternPrefix = "re:"

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Classifier config
	errors = append(errors, c.validateClassifier()...)

	// Validate Bus config
	errors = append(errors, c.validateBus()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	// Validate Profile overrides
	errors = append(errors, c.validateProfiles()...)

	return errors
}

// validateClassifier validates the ClassifierConfig
func (c *Config) validateClassifier() []ValidationError {
	var errors []ValidationError

	// Window must hold at least one byte
	if c.Classifier.WindowSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "classifier.window_size",
			Value:   c.Classifier.WindowSize,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound to prevent memory issues
	const maxWindowSize = 1048576 // 1MB per session
	if c.Classifier.WindowSize > maxWindowSize {
		errors = append(errors, ValidationError{
			Field:   "classifier.window_size",
			Value:   c.Classifier.WindowSize,
			Message: fmt.Sprintf("exceeds maximum of %d bytes (1MB)", maxWindowSize),
		})
	}

	return errors
}

// validateBus validates the BusConfig
func (c *Config) validateBus() []ValidationError {
	var errors []ValidationError

	if c.Bus.MaxSubscribersPerEvent < 1 {
		errors = append(errors, ValidationError{
			Field:   "bus.max_subscribers_per_event",
			Value:   c.Bus.MaxSubscribersPerEvent,
			Message: "must be at least 1",
		})
	}

	const maxSubscriberLimit = 4096
	if c.Bus.MaxSubscribersPerEvent > maxSubscriberLimit {
		errors = append(errors, ValidationError{
			Field:   "bus.max_subscribers_per_event",
			Value:   c.Bus.MaxSubscribersPerEvent,
			Message: fmt.Sprintf("exceeds maximum of %d", maxSubscriberLimit),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateProfiles validates the per-agent-type pattern overrides
func (c *Config) validateProfiles() []ValidationError {
	var errors []ValidationError

	for agentType, override := range c.Profiles {
		field := fmt.Sprintf("profiles.%s", agentType)
		errors = append(errors, validatePatterns(field+".busy_patterns", override.BusyPatterns)...)
		errors = append(errors, validatePatterns(field+".prompt_patterns", override.PromptPatterns)...)
	}

	return errors
}

// validatePatterns checks that no pattern is empty and that "re:" patterns compile
func validatePatterns(field string, patterns []string) []ValidationError {
	var errors []ValidationError

	for i, pattern := range patterns {
		if pattern == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Value:   pattern,
				Message: "cannot be empty",
			})
			continue
		}

		if expr, ok := strings.CutPrefix(pattern, regexPatternPrefix); ok {
			if _, err := regexp.Compile(expr); err != nil {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("%s[%d]", field, i),
					Value:   pattern,
					Message: fmt.Sprintf("invalid regular expression: %v", err),
				})
			}
		}
	}

	return errors
}
