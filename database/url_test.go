package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructDatabaseURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		dbName   string
		expected string
	}{
		{
			name:     "no database name",
			baseURL:  "postgres://u:p@db:5432/existing",
			expected: "postgres://u:p@db:5432/existing",
		},
		{
			name:     "plain base url",
			baseURL:  "postgres://u:p@db:5432",
			dbName:   "pools",
			expected: "postgres://u:p@db:5432/pools?sslmode=disable",
		},
		{
			name:     "trailing slash",
			baseURL:  "postgres://u:p@db:5432/",
			dbName:   "pools",
			expected: "postgres://u:p@db:5432/pools?sslmode=disable",
		},
		{
			name:     "existing query parameters",
			baseURL:  "postgres://u:p@db:5432?connect_timeout=5",
			dbName:   "pools",
			expected: "postgres://u:p@db:5432/pools?connect_timeout=5&sslmode=disable",
		},
		{
			name:     "explicit sslmode is kept",
			baseURL:  "postgres://u:p@db:5432/?sslmode=require",
			dbName:   "pools",
			expected: "postgres://u:p@db:5432/pools?sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConstructDatabaseURL(tt.baseURL, tt.dbName))
		})
	}
}
