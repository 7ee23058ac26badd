package ciutil

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearCI(t *testing.T) {
	t.Helper()
	for _, v := range ciVars {
		t.Setenv(v, "")
	}
}

func TestIsCI(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected bool
	}{
		{name: "no ci vars", envVars: map[string]string{}, expected: false},
		{name: "generic", envVars: map[string]string{EnvCI: "true"}, expected: true},
		{name: "github actions", envVars: map[string]string{EnvGitHubActions: "true"}, expected: true},
		{name: "gitlab", envVars: map[string]string{EnvGitLabCI: "true"}, expected: true},
		{name: "jenkins", envVars: map[string]string{EnvJenkinsURL: "https://jenkins.example.com"}, expected: true},
		{name: "circle", envVars: map[string]string{EnvCircleCI: "true"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearCI(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.expected, IsCI())
		})
	}
}

func TestGetEnvWithFallbacks(t *testing.T) {
	t.Setenv("TASKAPI_X_PRIMARY", "")
	t.Setenv("TASKAPI_X_LEGACY", "")
	vars := []string{"TASKAPI_X_PRIMARY", "TASKAPI_X_LEGACY"}

	assert.Equal(t, "fallback", GetEnvWithFallbacks(vars, "fallback", nil))

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	t.Setenv("TASKAPI_X_LEGACY", "postgres://app:hunter2@db:5432/tasks")
	assert.Equal(t, "postgres://app:hunter2@db:5432/tasks", GetEnvWithFallbacks(vars, "", log))
	assert.Contains(t, buf.String(), "used_var=TASKAPI_X_LEGACY")
	assert.NotContains(t, buf.String(), "hunter2")

	buf.Reset()
	t.Setenv("TASKAPI_X_PRIMARY", "primary")
	assert.Equal(t, "primary", GetEnvWithFallbacks(vars, "", log))
	assert.Empty(t, buf.String())
}

func TestTestDatabaseURL(t *testing.T) {
	t.Setenv(EnvTestDatabaseURL, "")
	t.Setenv(EnvDatabaseURL, "postgres://localhost/tasks")
	assert.Equal(t, "postgres://localhost/tasks", TestDatabaseURL(nil))

	t.Setenv(EnvTestDatabaseURL, "postgres://localhost/tasks_test")
	assert.Equal(t, "postgres://localhost/tasks_test", TestDatabaseURL(nil))
}
