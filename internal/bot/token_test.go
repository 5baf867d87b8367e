package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	cases := []struct {
		chapter string
		id      int
		idx     int
	}{
		{"ch1", 1, 0},
		{"go-basics", 42, 3},
		{"chapter with spaces", 0, 0},
		{"ऋग्वेद", 7, 1},
	}

	for _, tc := range cases {
		token := EncodeToken(tc.chapter, tc.id, tc.idx)

		chapter, id, idx, err := DecodeToken(token)
		require.NoError(t, err, "token %q", token)
		assert.Equal(t, tc.chapter, chapter)
		assert.Equal(t, tc.id, id)
		assert.Equal(t, tc.idx, idx)
	}
}

func TestDecodeTokenMalformed(t *testing.T) {
	cases := []string{
		"",
		"ch1",
		"ch1|5",
		"ch1|5|2|extra",
		"ch1|abc|2",
		"ch1|5|xyz",
		"|5|2",
	}

	for _, raw := range cases {
		_, _, _, err := DecodeToken(raw)
		assert.ErrorIs(t, err, ErrMalformedToken, "input %q", raw)
	}
}
