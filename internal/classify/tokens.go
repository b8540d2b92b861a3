package classify

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const approxCharsPerToken = 4

var (
	tokenEncoderOnce sync.Once
	tokenEncoder     *tiktoken.Tiktoken

	truncateTokensFunc = defaultTruncateTokens
)

// truncateTokens cuts text to at most limit tokens.
func truncateTokens(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	return truncateTokensFunc(text, limit)
}

func defaultTruncateTokens(text string, limit int) string {
	if enc := getTokenEncoder(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= limit {
			return text
		}
		return enc.Decode(tokens[:limit])
	}
	runes := []rune(text)
	if maxChars := limit * approxCharsPerToken; len(runes) > maxChars {
		return string(runes[:maxChars])
	}
	return text
}

func getTokenEncoder() *tiktoken.Tiktoken {
	tokenEncoderOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel("gpt-4o-mini")
		if err != nil {
			enc, _ = tiktoken.GetEncoding("cl100k_base")
		}
		tokenEncoder = enc
	})
	return tokenEncoder
}
