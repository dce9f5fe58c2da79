package helpers

import (
	"fmt"
	"regexp"

	"github.com/spaolacci/murmur3"
)

func DedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

// returns a fast, compact hash of a string
//
// current implementation uses murmur3, default seed, and hex encoding
func HashOfString(s string) string {
	val := murmur3.Sum64([]byte(s))
	return fmt.Sprintf("%016x", val)
}

// Picks a stable shard index in [0, n) for the given key
func ShardOf(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(murmur3.Sum32([]byte(key)) % uint32(n))
}

// matches both scheme-prefixed and bare "www." links
var urlRegex = regexp.MustCompile(`(?i)https?://\S+|www\.\S+`)

func CountTextURLs(raw string) int {
	return len(urlRegex.FindAllStringIndex(raw, -1))
}
