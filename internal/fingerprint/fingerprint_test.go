package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompute_KnownDigest(t *testing.T) {
	fp := Compute("")
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", fp.ContentHash)
	assert.Equal(t, 0, fp.Length)
}

func TestCompute_LengthCountsRunes(t *testing.T) {
	fp := Compute("Conditions générales")
	assert.Equal(t, 20, fp.Length)
}

func TestSame_IgnoresCreationTime(t *testing.T) {
	a := ComputeAt("Users may cancel at any time.", time.Unix(0, 0))
	b := ComputeAt("Users may cancel at any time.", time.Unix(1000, 0))
	assert.True(t, a.Same(b))

	c := ComputeAt("Users may cancel at any time!", time.Unix(0, 0))
	assert.False(t, a.Same(c))
}

func TestHash_SingleByteDifference(t *testing.T) {
	assert.NotEqual(t, Hash("fee"), Hash("fees"))
	assert.Equal(t, Hash("fees"), Hash("fees"))
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"Users may cancel.", 3},
		{"a 30-day notice — period", 4},
		{"§ 4.2 applies", 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, WordCount(tt.text), tt.text)
	}
}
