package moderation

import "github.com/abadojack/whatlanggo"

// DetectLanguage returns the ISO 639-1 code of the most likely language of
// the given text, or an empty string when detection is unreliable. Short
// chat messages often fall below the confidence bar, which is fine: the
// result is informational only.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
