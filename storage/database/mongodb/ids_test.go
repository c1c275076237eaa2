package mongorepos

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func Test_objectID(t *testing.T) {
	oid, err := primitive.ObjectIDFromHex("5f1d7e4a9b3c2d1e0f0a0b0c")
	require.NoError(t, err)
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "canonical", id: oid.Hex(), want: true},
		{name: "uppercase", id: strings.ToUpper(oid.Hex()), want: false},
		{name: "malformed", id: "404", want: false},
		{name: "empty", id: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := objectID(tt.id)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, oid, got)
			}
		})
	}
}
