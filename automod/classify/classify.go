package classify

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/mychatmanager/chatmod/automod/helpers"
	"github.com/mychatmanager/chatmod/automod/keyword"
	"github.com/mychatmanager/chatmod/automod/model"

	"github.com/rivo/uniseg"
)

var mentionRegex = regexp.MustCompile(`@\w+`)

// Stateless spam classifier. All fields are read-only after construction, and Classify is safe for concurrent use.
type Classifier struct {
	Patterns []Pattern
	// number of @mentions in one message counted as mass-mentioning
	MentionThreshold int
	// number of consecutive emoji counted as an emoji flood
	EmojiRunThreshold int
	CapsRatio         float64
	// caps check only applies to messages longer than this many characters
	CapsMinLength int
}

func NewClassifier() *Classifier {
	return &Classifier{
		Patterns:          DefaultPatterns(),
		MentionThreshold:  5,
		EmojiRunThreshold: 8,
		CapsRatio:         0.7,
		CapsMinLength:     15,
	}
}

// Classify checks, in priority order: blacklist terms, spam patterns, URL count, and uppercase ratio. The first match wins.
//
// blacklist is the already-merged set of global and chat-specific terms, as returned by keyword.MergeTerms.
func (c *Classifier) Classify(msg *model.MessageEvent, policy model.ChatPolicy, blacklist []string) model.SpamVerdict {
	if !msg.Moderatable() {
		return model.SpamVerdict{}
	}
	text := msg.Content()

	if term := keyword.MatchTerm(text, blacklist); term != "" {
		return model.SpamVerdict{
			IsSpam:   true,
			SpamType: model.SpamBlacklist,
			Reason:   fmt.Sprintf("message contains blacklisted word: '%s'", term),
		}
	}

	if name := c.matchPattern(text); name != "" {
		return model.SpamVerdict{
			IsSpam:   true,
			SpamType: model.SpamPattern,
			Reason:   fmt.Sprintf("matched spam pattern: %s", name),
		}
	}

	if n := helpers.CountTextURLs(text); n > int(policy.URLLimit) {
		return model.SpamVerdict{
			IsSpam:   true,
			SpamType: model.SpamURLs,
			Reason:   fmt.Sprintf("too many URLs in message (%d)", n),
		}
	}

	if ratio, ok := c.capsRatio(text); ok && ratio > c.CapsRatio {
		return model.SpamVerdict{
			IsSpam:   true,
			SpamType: model.SpamCaps,
			Reason:   fmt.Sprintf("excessive uppercase (%d%%)", int(ratio*100)),
		}
	}

	return model.SpamVerdict{}
}

func (c *Classifier) matchPattern(text string) string {
	for _, p := range c.Patterns {
		if p.Regex.MatchString(text) {
			return p.Name
		}
	}
	if c.MentionThreshold > 0 && len(mentionRegex.FindAllStringIndex(text, -1)) >= c.MentionThreshold {
		return "mass-mentions"
	}
	if c.EmojiRunThreshold > 0 && LongestEmojiRun(text) >= c.EmojiRunThreshold {
		return "emoji-flood"
	}
	return ""
}

func (c *Classifier) capsRatio(text string) (float64, bool) {
	n := utf8.RuneCountInString(text)
	if n <= c.CapsMinLength {
		return 0, false
	}
	upper := 0
	for _, r := range text {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(n), true
}

// Length of the longest run of consecutive emoji grapheme clusters in the text. Modifier and ZWJ sequences count once.
func LongestEmojiRun(text string) int {
	longest, run := 0, 0
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		rs := g.Runes()
		if len(rs) > 0 && isEmoji(rs[0]) {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF:
		return true
	}
	return false
}
