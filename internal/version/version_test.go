package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRevision(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"none", Info{}, ""},
		{"short", Info{VCSRevision: "abc"}, "abc"},
		{"truncated", Info{VCSRevision: "0123456789abcdef"}, "01234567"},
		{"dirty", Info{VCSRevision: "0123456789abcdef", VCSModified: true}, "01234567+dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.Revision())
		})
	}
}

func TestString(t *testing.T) {
	info := Info{Version: "1.2.0", BuildTime: "unknown", GoVersion: "go1.24.4", VCSRevision: "0123456789"}
	assert.Equal(t, "1.2.0 01234567 go1.24.4", info.String())

	info.BuildTime = "2025-01-02"
	assert.Equal(t, "1.2.0 01234567 built 2025-01-02 go1.24.4", info.String())
	assert.Equal(t, "mmctl/1.2.0", info.UserAgent())
	assert.Len(t, info.Fields(), 3)
}
