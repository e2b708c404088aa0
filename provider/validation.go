package provider

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidateConfigFields validates configuration against provided field definitions
func ValidateConfigFields(providerName string, config map[string]string, requiredFields []ConfigField) error {
	for _, field := range requiredFields {
		if !field.Required {
			continue
		}

		value, exists := config[field.Key]
		if !exists {
			return &ConfigError{Provider: providerName, Message: fmt.Sprintf("required field '%s' is missing", field.Key)}
		}

		if strings.TrimSpace(value) == "" {
			return &ConfigError{Provider: providerName, Message: fmt.Sprintf("required field '%s' cannot be empty", field.Key)}
		}

		if err := validateFieldType(providerName, field, value); err != nil {
			return err
		}

		if err := validateFieldPattern(providerName, field, value); err != nil {
			return err
		}

		if err := validateFieldLength(providerName, field, value); err != nil {
			return err
		}
	}

	return nil
}

// validateFieldType validates field based on its type
func validateFieldType(providerName string, field ConfigField, value string) error {
	switch field.Type {
	case "boolean":
		if value != "true" && value != "false" {
			return &ConfigError{Provider: providerName, Message: fmt.Sprintf("field '%s' must be 'true' or 'false'", field.Key)}
		}
		return nil
	default:
		return nil
	}
}

// validateFieldPattern validates field against regex pattern
func validateFieldPattern(providerName string, field ConfigField, value string) error {
	if field.Pattern == "" {
		return nil
	}

	if field.Key == "environment" {
		validEnvs := []string{"sandbox", "production"}
		for _, env := range validEnvs {
			if value == env {
				return nil
			}
		}
		return &ConfigError{Provider: providerName, Message: fmt.Sprintf("environment must be one of: %s", strings.Join(validEnvs, ", "))}
	}

	matched, err := regexp.MatchString(field.Pattern, value)
	if err != nil {
		return &ConfigError{Provider: providerName, Message: fmt.Sprintf("invalid pattern for field '%s': %v", field.Key, err)}
	}

	if !matched {
		return &ConfigError{Provider: providerName, Message: fmt.Sprintf("field '%s' does not match required pattern", field.Key)}
	}

	return nil
}

// validateFieldLength validates field length constraints
func validateFieldLength(providerName string, field ConfigField, value string) error {
	if field.MinLength > 0 && len(value) < field.MinLength {
		return &ConfigError{Provider: providerName, Message: fmt.Sprintf("field '%s' must be at least %d characters", field.Key, field.MinLength)}
	}

	if field.MaxLength > 0 && len(value) > field.MaxLength {
		return &ConfigError{Provider: providerName, Message: fmt.Sprintf("field '%s' must not exceed %d characters", field.Key, field.MaxLength)}
	}

	return nil
}
