package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("multiple validation errors: %s", strings.Join(messages, "; "))
}

// ValidateExtended performs extended validation beyond Validate's basic
// sanity checks: the pruning-filter grammar, policy name, and metrics
// listen address.
func (c *Config) ValidateExtended() error {
	var errs ValidationErrors

	if err := c.validateGraph(); err != nil {
		if ve, ok := err.(ValidationErrors); ok {
			errs = append(errs, ve...)
		} else {
			errs = append(errs, ValidationError{Field: "graph", Message: err.Error()})
		}
	}

	if err := c.validateFilters(); err != nil {
		if ve, ok := err.(ValidationErrors); ok {
			errs = append(errs, ve...)
		} else {
			errs = append(errs, ValidationError{Field: "filters", Message: err.Error()})
		}
	}

	if err := c.validatePolicy(); err != nil {
		if ve, ok := err.(ValidationErrors); ok {
			errs = append(errs, ve...)
		} else {
			errs = append(errs, ValidationError{Field: "policy", Message: err.Error()})
		}
	}

	if err := c.validateMetrics(); err != nil {
		if ve, ok := err.(ValidationErrors); ok {
			errs = append(errs, ve...)
		} else {
			errs = append(errs, ValidationError{Field: "metrics", Message: err.Error()})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateGraph() error {
	var errs ValidationErrors

	if c.Graph.Duration == 0 {
		errs = append(errs, ValidationError{
			Field:   "graph.duration",
			Value:   c.Graph.Duration,
			Message: "duration must be positive",
		})
	}
	if c.Graph.DominantSubsystem == "" {
		errs = append(errs, ValidationError{
			Field:   "graph.dominant_subsystem",
			Value:   c.Graph.DominantSubsystem,
			Message: "dominant subsystem name is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateFilters checks every subsystem's registration string against
// spec.md §4.4's grammar: pair ("," pair)*, pair = anchor ":" tracked.
func (c *Config) validateFilters() error {
	var errs ValidationErrors

	for subsystem, spec := range c.Filters.Spec {
		if spec == "" {
			continue
		}
		for _, pair := range strings.Split(spec, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			parts := strings.SplitN(pair, ":", 2)
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("filters.spec[%s]", subsystem),
					Value:   pair,
					Message: `pair must be "anchor:tracked"`,
				})
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validatePolicy() error {
	var errs ValidationErrors

	validNames := []string{"first-fit", "low-score", "high-id-first"}
	if !contains(validNames, c.Policy.Name) {
		errs = append(errs, ValidationError{
			Field:   "policy.name",
			Value:   c.Policy.Name,
			Message: fmt.Sprintf("policy name must be one of: %s", strings.Join(validNames, ", ")),
		})
	}
	if c.Policy.StopOnKMatches < 0 {
		errs = append(errs, ValidationError{
			Field:   "policy.stop_on_k_matches",
			Value:   c.Policy.StopOnKMatches,
			Message: "stop_on_k_matches must be >= 0",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if !c.Metrics.Enabled {
		return nil
	}
	if c.Metrics.Listen == "" {
		return ValidationErrors{{
			Field:   "metrics.listen",
			Value:   c.Metrics.Listen,
			Message: "listen address is required when metrics are enabled",
		}}
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
