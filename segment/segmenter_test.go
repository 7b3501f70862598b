package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	t.Run("empty buffer", func(t *testing.T) {
		complete, remainder := Split("")
		assert.Empty(t, complete)
		assert.Equal(t, "", remainder)
	})

	t.Run("unterminated text stays in remainder", func(t *testing.T) {
		complete, remainder := Split("I was thinking about")
		assert.Empty(t, complete)
		assert.Equal(t, "I was thinking about", remainder)
	})

	t.Run("single sentence", func(t *testing.T) {
		complete, remainder := Split("Hello there!")
		assert.Equal(t, []string{"Hello there!"}, complete)
		assert.Equal(t, "", remainder)
	})

	t.Run("sentence plus partial", func(t *testing.T) {
		complete, remainder := Split("Hello. How are")
		assert.Equal(t, []string{"Hello."}, complete)
		assert.Equal(t, " How are", remainder)
	})

	t.Run("terminator runs are not split", func(t *testing.T) {
		complete, remainder := Split("Really?! Yes... maybe")
		assert.Equal(t, []string{"Really?!", " Yes..."}, complete)
		assert.Equal(t, " maybe", remainder)
	})

	t.Run("cjk terminators", func(t *testing.T) {
		complete, remainder := Split("你好。今天怎么样？还")
		assert.Equal(t, []string{"你好。", "今天怎么样？"}, complete)
		assert.Equal(t, "还", remainder)
	})

	t.Run("lossless reassembly", func(t *testing.T) {
		inputs := []string{
			"One. Two! Three? Four",
			"  padded .  and more ; tail",
			"no punctuation at all",
			"你好。hello! mixed 世界？end",
		}
		for _, in := range inputs {
			complete, remainder := Split(in)
			assert.Equal(t, in, strings.Join(complete, "")+remainder)
		}
	})

	t.Run("remainder is stable under resplit", func(t *testing.T) {
		_, remainder := Split("Done. still going")
		again, rem2 := Split(remainder)
		assert.Empty(t, again)
		assert.Equal(t, remainder, rem2)
	})
}

func TestIsTerminated(t *testing.T) {
	assert.True(t, IsTerminated("Done."))
	assert.True(t, IsTerminated("真的吗？"))
	assert.False(t, IsTerminated("almost"))
	assert.False(t, IsTerminated(""))
	assert.False(t, IsTerminated("trailing space. "))
}
