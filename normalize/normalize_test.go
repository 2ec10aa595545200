package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanEmpty(t *testing.T) {
	assert := assert.New(t)

	for _, raw := range []string{"", "   ", "\t\n ", " "} {
		out := Clean(raw)
		assert.Equal("", out.Text)
		assert.Empty(out.Tokens)
		assert.Equal(0, out.URLs)
		assert.Equal(0, out.Mentions)
	}
}

func TestCleanBasic(t *testing.T) {
	assert := assert.New(t)

	out := Clean("Check this out https://example.com/page @friend #CryptoDeal!!!")
	assert.Equal(1, out.URLs)
	assert.Equal(1, out.Mentions)
	assert.Equal(1, out.Hashtags)
	assert.Equal([]string{"check", "this", "out", URLToken, MentionToken, "cryptodeal"}, out.Tokens)
}

func TestCleanAccentFolding(t *testing.T) {
	assert := assert.New(t)

	out := Clean("Déjà vu, ÉLÉGANT été")
	assert.Equal("deja vu elegant ete", out.Text)
}

func TestCleanRepeatClamp(t *testing.T) {
	assert := assert.New(t)

	out := Clean("loooooooool")
	assert.Equal([]string{"loool"}, out.Tokens)
}

func TestCleanDeterministic(t *testing.T) {
	assert := assert.New(t)

	raw := "RT @bot_4231: WIN a FREE iPhone!! https://t.co/abc123 #giveaway #free"
	first := Clean(raw)
	for i := 0; i < 5; i++ {
		assert.Equal(first, Clean(raw))
	}
}

func TestCleanCountsBareDomains(t *testing.T) {
	assert := assert.New(t)

	out := Clean("huge deal at spam-site.com right now")
	assert.Equal(1, out.URLs)
	assert.Equal(0, out.Mentions)
	assert.Equal(0, out.Hashtags)
	// no scheme, so no placeholder: the domain stays as lexical tokens
	assert.NotContains(out.Tokens, URLToken)
	assert.Contains(out.Tokens, "com")
}

func TestExtractURLs(t *testing.T) {
	assert := assert.New(t)

	urls := ExtractURLs("go to example.com and https://foo.org/bar now")
	assert.Equal([]string{"example.com", "https://foo.org/bar"}, urls)
}
