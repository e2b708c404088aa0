package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApp_Singleton(t *testing.T) {
	first := App()
	second := App()

	assert.Same(t, first, second)
	assert.NotNil(t, first.Validator)
	assert.NotEmpty(t, first.SecretKey)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_STRING_VAR", "value")

	assert.Equal(t, "value", GetEnv("TEST_STRING_VAR", "default"))
	assert.Equal(t, "default", GetEnv("TEST_MISSING_VAR", "default"))
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("TEST_BOOL_TRUE", "true")
	t.Setenv("TEST_BOOL_INVALID", "not-a-bool")

	assert.True(t, GetBoolEnv("TEST_BOOL_TRUE", false))
	assert.True(t, GetBoolEnv("TEST_BOOL_INVALID", true))
	assert.False(t, GetBoolEnv("TEST_BOOL_MISSING", false))
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("TEST_INT_VAR", "42")
	t.Setenv("TEST_INT_INVALID", "forty-two")

	assert.Equal(t, 42, GetIntEnv("TEST_INT_VAR", 7))
	assert.Equal(t, 7, GetIntEnv("TEST_INT_INVALID", 7))
	assert.Equal(t, 7, GetIntEnv("TEST_INT_MISSING", 7))
}
