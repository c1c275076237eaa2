package sqlxrepos

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_isUUID(t *testing.T) {
	id := "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "canonical", id: id, want: true},
		{name: "uppercase", id: strings.ToUpper(id), want: false},
		{name: "braces", id: "{" + id + "}", want: false},
		{name: "urn", id: "urn:uuid:" + id, want: false},
		{name: "no hyphens", id: strings.ReplaceAll(id, "-", ""), want: false},
		{name: "malformed", id: "404", want: false},
		{name: "empty", id: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUUID(tt.id))
		})
	}
}
