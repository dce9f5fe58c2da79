package classify

import "regexp"

type Pattern struct {
	Name  string
	Regex *regexp.Regexp
}

func mustPattern(name, expr string) Pattern {
	return Pattern{Name: name, Regex: regexp.MustCompile(`(?i)` + expr)}
}

// Built-in spam patterns, checked in order.
func DefaultPatterns() []Pattern {
	return []Pattern{
		mustPattern("buy-followers", `buy.{1,20}followers`),
		mustPattern("make-money-online", `make money online`),
		mustPattern("earn-per-day", `earn \$\d+ per day`),
		mustPattern("join-my-channel", `join my channel`),
		mustPattern("click-here", `click here`),
		mustPattern("suspicious-tld", `https?://\S+\.(xyz|tk|ml|ga|cf|gq|top|loan|online|vip|win)\b`),
		mustPattern("crypto-promo", `\b(bitcoin|btc|ethereum|eth|crypto|whitepaper|ico|token sale)\b.*\bhttps?://\S+\b`),
		mustPattern("spam-phrase", `\b(free money|make money online|earn from home|double your investment)\b`),
	}
}

// Terms in the global blacklist, merged with every chat's own list.
var DefaultGlobalBlacklist = []string{
	"spam",
	"scam",
	"porn",
	"xxx",
	"sex",
	"nude",
	"naked",
}
