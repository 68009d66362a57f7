package generator

import (
	"regexp"
	"strings"
)

// MaxTopicLength caps caller-supplied topics.
const MaxTopicLength = 75

var (
	bannedTopicPhrases = []string{
		"kill yourself", "go die", "white power", "lynch",
		" fag", " faggot", "nigger", "darkie", "slant eyed", "wetback",
	}
	gibberishRe  = regexp.MustCompile(`[^a-zA-Z0-9\s,.!?()'"-]{3,}`)
	topicEmojiRe = regexp.MustCompile(`[\x{1F600}-\x{1F64F}]{3,}`)
)

// ModerateTopic trims and caps a topic and reports whether it was dropped.
// An unsafe topic comes back as "" with dropped set; a blank one is treated as unset.
func ModerateTopic(topic string) (string, bool) {
	t := strings.TrimSpace(topic)
	if r := []rune(t); len(r) > MaxTopicLength {
		t = string(r[:MaxTopicLength])
	}
	if t == "" {
		return "", false
	}
	lower := strings.ToLower(t)
	for _, p := range bannedTopicPhrases {
		if strings.Contains(lower, p) {
			return "", true
		}
	}
	if gibberishRe.MatchString(t) || topicEmojiRe.MatchString(t) {
		return "", true
	}
	return t, false
}
