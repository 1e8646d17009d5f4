package player_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"multiroom-ws/internal/player"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "plain words",
			query: "foo bar",
			want:  []string{"foo", "bar"},
		},
		{
			name:  "quoted phrase in the middle",
			query: `foo "bar baz" qux`,
			want:  []string{"foo", "bar baz", "qux"},
		},
		{
			name:  "only a quoted phrase",
			query: `"dire straits"`,
			want:  []string{"dire straits"},
		},
		{
			name:  "empty query",
			query: "",
			want:  nil,
		},
		{
			name:  "whitespace only",
			query: "   ",
			want:  nil,
		},
		{
			name:  "empty quotes dropped",
			query: `foo "" bar`,
			want:  []string{"foo", "bar"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, player.Tokenize(tc.query))
		})
	}
}
