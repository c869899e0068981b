package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOptions(t *testing.T) {
	opts := parseOptions([]string{"--key=snapshots/a.json", "--sub=p1", "--admin", "--json", "--keep=3", "--unknown=x"})

	assert.Equal(t, "snapshots/a.json", opts.key)
	assert.Equal(t, "p1", opts.sub)
	assert.True(t, opts.admin)
	assert.True(t, opts.useJSON)
	assert.Equal(t, 3, opts.keep)
}

func TestParseFlag(t *testing.T) {
	tests := []struct {
		arg       string
		wantKey   string
		wantValue string
	}{
		{"--key=a=b", "key", "a=b"},
		{"-json", "json", ""},
		{"admin", "admin", ""},
	}
	for _, tt := range tests {
		key, value := parseFlag(tt.arg)
		assert.Equal(t, tt.wantKey, key, tt.arg)
		assert.Equal(t, tt.wantValue, value, tt.arg)
	}
}
