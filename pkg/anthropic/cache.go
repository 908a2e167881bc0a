package anthropic

// CachedSystem returns a system prompt marked for prompt caching. The judge
// sends the same instructions for every pair, so only the first call in a
// five-minute window pays for them.
func CachedSystem(text string) []SystemBlock {
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: "5m"}}}
}
