package sentiment

import "regexp"

var (
	// "RT @user: " attribution that opens a retweet
	retweetHeaderPattern = regexp.MustCompile(`RT\s+@[A-Za-z0-9]+:\s*`)
	mentionPattern       = regexp.MustCompile(`@[A-Za-z0-9]+`)
	hashtagPattern       = regexp.MustCompile(`#`)
	retweetPattern       = regexp.MustCompile(`RT\s+`)
	linkPattern          = regexp.MustCompile(`https?://\S+`)
)

var noisePatterns = []*regexp.Regexp{
	retweetHeaderPattern,
	mentionPattern,
	hashtagPattern,
	retweetPattern,
	linkPattern,
}

// Normalize strips mentions, hashtag markers, retweet markers and links from
// a post. Nothing else is touched: no case folding and no whitespace
// collapsing, so callers must tolerate the gaps left behind.
//
// Removals are repeated until the text stops changing, because one removal
// can splice together a new match (e.g. "RThttp://x.co y" becomes "RT y").
// The result therefore never contains a noise pattern and
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	for {
		cleaned := stripNoise(text)
		if cleaned == text {
			return cleaned
		}
		text = cleaned
	}
}

func stripNoise(text string) string {
	for _, p := range noisePatterns {
		text = p.ReplaceAllString(text, "")
	}
	return text
}
