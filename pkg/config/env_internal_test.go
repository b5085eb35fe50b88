package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		list string
		want []string
	}{
		{name: "unset", list: "", want: []string{".env"}},
		{name: "blank entries", list: " , ,", want: []string{".env"}},
		{name: "single", list: "deploy/.env", want: []string{"deploy/.env"}},
		{name: "several", list: ".env, .env.local ,", want: []string{".env", ".env.local"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, envFiles(tt.list))
		})
	}
}
