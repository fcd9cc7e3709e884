package sqlxrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_likePattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "scien", want: `%scien%`},
		{in: "a_b", want: `%a\_b%`},
		{in: "100%", want: `%100\%%`},
		{in: `c:\x`, want: `%c:\\x%`},
		{in: "", want: `%%`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, likePattern(tt.in))
		})
	}
}
