package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devmem/devmem-go/pkg/classify"
)

func TestError(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"syntax", "SyntaxError: invalid syntax at line 42", "syntax"},
		{"import", "ModuleNotFoundError: no module named 'requests'", "import"},
		{"network", "dial tcp 127.0.0.1:5432: connection refused", "network"},
		{"permission", "open /etc/secrets: permission denied", "permission"},
		{"memory", "fatal error: out of memory", "memory"},
		{"type", "TypeError: cannot unpack non-iterable NoneType object", "type"},
		{"case insensitive", "CONNECTION REFUSED by upstream", "network"},
		{"unrecognized", "something strange happened", classify.GeneralClass},
		{"empty", "", classify.GeneralClass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify.Error(tt.text))
		})
	}
}

func TestTask(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"feature", "implement a new export endpoint", "feature"},
		{"bugfix", "fix the crash when the config file is missing", "bugfix"},
		{"refactor", "refactor the session handling into its own package", "refactor"},
		{"test", "add a regression test for the retry loop", "test"},
		{"docs", "update the README with the new flags", "docs"},
		{"unrecognized", "look into that thing from standup", classify.GeneralClass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify.Task(tt.text))
		})
	}
}
