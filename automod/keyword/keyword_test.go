package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldText(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("spam", FoldText("SPAM"))
	assert.Equal("spam", FoldText("SPÄM"))
	assert.Equal("cafe", FoldText("Café"))
	assert.Equal("strasse", FoldText("STRASSE"))
}

func TestMatchTerm(t *testing.T) {
	assert := assert.New(t)

	terms := MergeTerms([]string{"scam", "Porn", " "})
	assert.Equal("scam", MatchTerm("This is a SCAM, trust me", terms))
	// lowest sorted term wins when several match
	assert.Equal("porn", MatchTerm("scam and porn", terms))
	assert.Equal("porn", MatchTerm("free pornography", terms))
	assert.Equal("", MatchTerm("hello there", terms))
	assert.Equal("", MatchTerm("", terms))
	assert.Equal("", MatchTerm("scam", nil))
}

func TestMergeTerms(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"crypto", "scam", "spam"}, MergeTerms([]string{"spam", "SCAM"}, []string{"scam", "crypto", ""}))
}

