package generator

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// RejectReason names the rule that rejected a variant's text.
type RejectReason string

const (
	ReasonEmpty     RejectReason = "empty"
	ReasonBlacklist RejectReason = "blacklist"
	ReasonExpired   RejectReason = "expired_phrase"
	ReasonEmojiSpam RejectReason = "emoji_spam"
	ReasonASCIIArt  RejectReason = "ascii_art"
	ReasonCapsLock  RejectReason = "caps_lock"
	ReasonConflict  RejectReason = "profile_conflict"
)

// Source records where a variant's final text came from.
type Source string

const (
	// SourceGenerated is model output that passed every rule.
	SourceGenerated Source = "generated"
	// SourceFallback is the fallback variant's filtered text substituted for a rejection.
	SourceFallback Source = "fallback"
	// SourceEmpty is the fallback variant's own rejection.
	SourceEmpty Source = "empty"
)

// Verdict is the outcome of checking one text: accepted with its normalized
// text, or rejected with a reason.
type Verdict struct {
	Accepted bool
	Text     string
	Reason   RejectReason
}

func accepted(text string) Verdict          { return Verdict{Accepted: true, Text: text} }
func rejected(reason RejectReason) Verdict { return Verdict{Reason: reason} }

// FilterResult is the fully keyed output of Filter.Apply.
type FilterResult struct {
	Texts   map[string]string
	Sources map[string]Source
	// Reasons holds the rejection reason for every variant that was not accepted.
	Reasons map[string]RejectReason
}

// FallbackFlags reports, per variant, whether its text is the substituted fallback text.
func (r FilterResult) FallbackFlags() map[string]bool {
	flags := make(map[string]bool, len(r.Sources))
	for k, src := range r.Sources {
		flags[k] = src == SourceFallback
	}
	return flags
}

type compiledRule struct {
	name      string
	attribute string
	equals    string
	keywords  []string
}

// Filter is the layered content-safety check. It is immutable and safe for concurrent use.
type Filter struct {
	blacklist []string
	expired   []string
	patterns  []pattern
	rules     []compiledRule
}

type pattern struct {
	re     *regexp.Regexp
	reason RejectReason
}

// NewFilter compiles cfg. Invalid patterns are configuration errors.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	f := &Filter{
		blacklist: lowerAll(cfg.Blacklist),
		expired:   lowerAll(cfg.ExpiredPhrases),
	}
	for _, p := range []struct {
		expr   string
		reason RejectReason
	}{
		{cfg.EmojiSpam, ReasonEmojiSpam},
		{cfg.ASCIIArt, ReasonASCIIArt},
		{cfg.CapsLock, ReasonCapsLock},
	} {
		if p.expr == "" {
			continue
		}
		re, err := regexp.Compile(p.expr)
		if err != nil {
			return nil, errors.Wrapf(err, "compile %s pattern", p.reason)
		}
		f.patterns = append(f.patterns, pattern{re: re, reason: p.reason})
	}
	for _, r := range cfg.ConflictRules {
		if r.Attribute == "" || len(r.Keywords) == 0 {
			return nil, errors.Errorf("conflict rule %q needs an attribute and keywords", r.Name)
		}
		f.rules = append(f.rules, compiledRule{
			name:      r.Name,
			attribute: strings.ToLower(r.Attribute),
			equals:    r.Equals,
			keywords:  lowerAll(r.Keywords),
		})
	}
	return f, nil
}

// Check runs every rule over the whitespace-normalized text. user and other may be nil.
func (f *Filter) Check(text string, user, other *Profile) Verdict {
	text = normalizeSpace(text)
	if text == "" {
		return rejected(ReasonEmpty)
	}
	lower := strings.ToLower(text)
	if containsAny(lower, f.blacklist) {
		return rejected(ReasonBlacklist)
	}
	if containsAny(lower, f.expired) {
		return rejected(ReasonExpired)
	}
	for _, p := range f.patterns {
		if p.re.MatchString(text) {
			return rejected(p.reason)
		}
	}
	for _, r := range f.rules {
		if !r.applies(user, other) {
			continue
		}
		if containsAny(lower, r.keywords) {
			return rejected(ReasonConflict)
		}
	}
	return accepted(text)
}

// Apply checks every text and resolves rejections against the fallback variant.
func (f *Filter) Apply(texts map[string]string, fallback string, user, other *Profile) FilterResult {
	verdicts := make(map[string]Verdict, len(texts))
	for k, t := range texts {
		verdicts[k] = f.Check(t, user, other)
	}

	fallbackText := ""
	if v, ok := verdicts[fallback]; ok && v.Accepted {
		fallbackText = v.Text
	}

	res := FilterResult{
		Texts:   make(map[string]string, len(texts)),
		Sources: make(map[string]Source, len(texts)),
		Reasons: make(map[string]RejectReason),
	}
	for k, v := range verdicts {
		text, src := resolve(k, v, fallback, fallbackText)
		res.Texts[k] = text
		res.Sources[k] = src
		if !v.Accepted {
			res.Reasons[k] = v.Reason
		}
	}
	return res
}

// resolve applies the substitution rule for one variant.
// The fallback variant is never substituted with itself.
func resolve(key string, v Verdict, fallback, fallbackText string) (string, Source) {
	switch {
	case v.Accepted:
		return v.Text, SourceGenerated
	case key == fallback:
		return "", SourceEmpty
	default:
		return fallbackText, SourceFallback
	}
}

func (r compiledRule) applies(user, other *Profile) bool {
	val := other.Attribute(r.attribute)
	if val == "" {
		val = user.Attribute(r.attribute)
	}
	return val != "" && strings.EqualFold(val, r.equals)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
