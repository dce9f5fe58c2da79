package classify

import (
	"strings"
	"testing"

	"github.com/mychatmanager/chatmod/automod/keyword"
	"github.com/mychatmanager/chatmod/automod/model"

	"github.com/stretchr/testify/assert"
)

func msg(text string) *model.MessageEvent {
	return &model.MessageEvent{ChatID: -100, UserID: 7, MessageID: 1, Text: text}
}

var testBlacklist = keyword.MergeTerms(DefaultGlobalBlacklist)

func TestClassifyFixtures(t *testing.T) {
	assert := assert.New(t)
	c := NewClassifier()
	policy := model.DefaultPolicy()

	fixtures := []struct {
		text     string
		spamType string
		reason   string
	}{
		{text: "hello everyone, how are you?", spamType: ""},
		{text: "What a SCAM this is", spamType: model.SpamBlacklist, reason: "scam"},
		{text: "buy cheap followers now!! https://x.tk https://y.tk https://z.tk https://w.tk", spamType: model.SpamPattern, reason: "buy-followers"},
		{text: "Learn to MAKE MONEY ONLINE today", spamType: model.SpamPattern, reason: "make-money-online"},
		{text: "earn $500 per day from your couch", spamType: model.SpamPattern, reason: "earn-per-day"},
		{text: "check out https://deals.xyz for more", spamType: model.SpamPattern, reason: "suspicious-tld"},
		{text: "Get bitcoin at https://coins.example.com now", spamType: model.SpamPattern, reason: "crypto-promo"},
		{text: "want to double your investment?", spamType: model.SpamPattern, reason: "spam-phrase"},
		{text: "@anna @bob @carl @dina @ed look at this", spamType: model.SpamPattern, reason: "mass-mentions"},
		{text: "@anna @bob @carl @dina look at this", spamType: ""},
		{text: "wow 😀😀😀😀😀😀😀😀", spamType: model.SpamPattern, reason: "emoji-flood"},
		{text: "wow 😀😀😀😀😀😀😀", spamType: ""},
		{text: "links: https://a.com https://b.com https://c.com https://d.com", spamType: model.SpamURLs, reason: "(4)"},
		{text: "links: https://a.com https://b.com https://c.com", spamType: ""},
		{text: "THIS IS REALLY LOUD TEXT", spamType: model.SpamCaps, reason: "uppercase"},
		{text: "HELLO THERE", spamType: ""},
	}

	for _, fix := range fixtures {
		v := c.Classify(msg(fix.text), policy, testBlacklist)
		if fix.spamType == "" {
			assert.False(v.IsSpam, fix.text)
			continue
		}
		assert.True(v.IsSpam, fix.text)
		assert.Equal(fix.spamType, v.SpamType, fix.text)
		assert.True(strings.Contains(v.Reason, fix.reason), "%s: %s", fix.text, v.Reason)
	}
}

func TestClassifyPriority(t *testing.T) {
	assert := assert.New(t)
	c := NewClassifier()
	policy := model.DefaultPolicy()

	// blacklist beats pattern
	v := c.Classify(msg("click here, it is not a scam"), policy, testBlacklist)
	assert.Equal(model.SpamBlacklist, v.SpamType)

	// pattern beats URL count
	v = c.Classify(msg("click here https://a.com https://b.com https://c.com https://d.com"), policy, nil)
	assert.Equal(model.SpamPattern, v.SpamType)

	// URL count beats caps
	v = c.Classify(msg("LOOK HTTPS://A.COM HTTPS://B.COM HTTPS://C.COM HTTPS://D.COM"), policy, nil)
	assert.Equal(model.SpamURLs, v.SpamType)
}

func TestClassifyURLLimitFromPolicy(t *testing.T) {
	assert := assert.New(t)
	c := NewClassifier()
	policy := model.DefaultPolicy()
	policy.URLLimit = 1

	v := c.Classify(msg("see https://a.com and www.b.org"), policy, nil)
	assert.True(v.IsSpam)
	assert.Equal(model.SpamURLs, v.SpamType)
}

func TestClassifyChatBlacklist(t *testing.T) {
	assert := assert.New(t)
	c := NewClassifier()

	v := c.Classify(msg("selling Widgets cheap"), model.DefaultPolicy(), []string{"widgets"})
	assert.True(v.IsSpam)
	assert.Equal(model.SpamBlacklist, v.SpamType)
}

func TestClassifyBypass(t *testing.T) {
	assert := assert.New(t)
	c := NewClassifier()
	policy := model.DefaultPolicy()

	assert.False(c.Classify(msg("/warn this scam"), policy, testBlacklist).IsSpam)
	assert.False(c.Classify(&model.MessageEvent{Text: "click here", IsCommand: true}, policy, nil).IsSpam)
	assert.False(c.Classify(msg(""), policy, testBlacklist).IsSpam)

	// media caption is classified like text
	v := c.Classify(&model.MessageEvent{Caption: "join my channel for more"}, policy, nil)
	assert.True(v.IsSpam)
	assert.Equal(model.SpamPattern, v.SpamType)
}

func TestClassifyDeterministic(t *testing.T) {
	assert := assert.New(t)
	c := NewClassifier()
	policy := model.DefaultPolicy()

	for _, text := range []string{"hello", "buy cheap followers", "THIS IS REALLY LOUD TEXT", "nothing to see"} {
		first := c.Classify(msg(text), policy, testBlacklist)
		second := c.Classify(msg(text), policy, testBlacklist)
		assert.Equal(first, second)
	}
}

func TestLongestEmojiRun(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0, LongestEmojiRun("plain text"))
	assert.Equal(3, LongestEmojiRun("🔥🔥 a 🔥🔥🔥"))
	assert.Equal(2, LongestEmojiRun("☀☀x"))
}
