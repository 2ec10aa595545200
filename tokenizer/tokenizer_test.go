package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocab() []string {
	return []string{
		PadToken, UnkToken, ClsToken, SepToken,
		"free", "win", "now", "iphone",
		"give", "##away", "##s",
		"xurl", "xmention",
	}
}

func newTestTokenizer(t *testing.T, maxLen int) *Tokenizer {
	tok, err := New("en", testVocab(), maxLen)
	require.NoError(t, err)
	return tok
}

func TestEncodeShape(t *testing.T) {
	assert := assert.New(t)
	tok := newTestTokenizer(t, 8)

	enc := tok.Encode("win free iphone")
	assert.Len(enc.IDs, 8)
	assert.Len(enc.Mask, 8)
	// [CLS] win free iphone [SEP] pad pad pad
	assert.Equal([]int{2, 5, 4, 7, 3, 0, 0, 0}, enc.IDs)
	assert.Equal([]int{1, 1, 1, 1, 1, 0, 0, 0}, enc.Mask)
}

func TestEncodeSubwords(t *testing.T) {
	assert := assert.New(t)
	tok := newTestTokenizer(t, 8)

	enc := tok.Encode("giveaway wins")
	// give ##away win ##s
	assert.Equal([]int{2, 8, 9, 5, 10, 3, 0, 0}, enc.IDs)
}

func TestEncodeUnknown(t *testing.T) {
	assert := assert.New(t)
	tok := newTestTokenizer(t, 8)

	enc := tok.Encode("zzzqqq free")
	assert.Equal([]int{2, 1, 4, 3, 0, 0, 0, 0}, enc.IDs)
}

func TestEncodeTruncation(t *testing.T) {
	assert := assert.New(t)
	tok := newTestTokenizer(t, 6)

	enc := tok.Encode("free free free free free free free")
	// [CLS] + 4 tokens + [SEP], never longer than maxLen
	assert.Equal([]int{2, 4, 4, 4, 4, 3}, enc.IDs)
	assert.Equal([]int{1, 1, 1, 1, 1, 1}, enc.Mask)
}

func TestEncodeEmpty(t *testing.T) {
	assert := assert.New(t)
	tok := newTestTokenizer(t, 6)

	enc := tok.Encode("")
	assert.Equal([]int{2, 3, 0, 0, 0, 0}, enc.IDs)
	assert.Equal([]int{1, 1, 0, 0, 0, 0}, enc.Mask)
}

func TestEncodeDeterministic(t *testing.T) {
	assert := assert.New(t)
	tok := newTestTokenizer(t, 16)

	first := tok.Encode("win free iphone giveaway now xurl")
	for i := 0; i < 10; i++ {
		assert.Equal(first, tok.Encode("win free iphone giveaway now xurl"))
	}
}

func TestMissingSpecials(t *testing.T) {
	assert := assert.New(t)

	_, err := New("en", []string{"free", "win"}, 8)
	assert.Error(err)
}
