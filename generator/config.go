package generator

import "github.com/pkg/errors"

// Variant is a named tone slot and the description shown to the model.
type Variant struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description" json:"description"`
}

// VariantTable is the ordered set of known variants.
type VariantTable []Variant

// IDs returns the variant identifiers in configured order.
func (t VariantTable) IDs() []string {
	ids := make([]string, 0, len(t))
	for _, v := range t {
		ids = append(ids, v.ID)
	}
	return ids
}

// Lookup returns the description for id.
func (t VariantTable) Lookup(id string) (string, bool) {
	for _, v := range t {
		if v.ID == id {
			return v.Description, true
		}
	}
	return "", false
}

// RetrySchedule controls the generation client's attempts.
type RetrySchedule struct {
	Attempts                int     `yaml:"attempts"`
	CreativeTemperature     float64 `yaml:"creative_temperature"`
	ConservativeTemperature float64 `yaml:"conservative_temperature"`
	SafetySuffix            string  `yaml:"safety_suffix"`
	MaxTokens               int     `yaml:"max_tokens"`
}

// ConflictRule rejects text mentioning any keyword while a profile attribute equals a value.
type ConflictRule struct {
	Name      string   `yaml:"name"`
	Attribute string   `yaml:"attribute"`
	Equals    string   `yaml:"equals"`
	Keywords  []string `yaml:"keywords"`
}

// FilterConfig lists the phrase lists and formatting patterns used by Filter.
type FilterConfig struct {
	Blacklist      []string       `yaml:"blacklist"`
	ExpiredPhrases []string       `yaml:"expired_phrases"`
	EmojiSpam      string         `yaml:"emoji_spam"`
	ASCIIArt       string         `yaml:"ascii_art"`
	CapsLock       string         `yaml:"caps_lock"`
	ConflictRules  []ConflictRule `yaml:"conflict_rules"`
}

// Config is the read-only configuration of the generation pipeline.
type Config struct {
	Variants              VariantTable  `yaml:"variants"`
	FallbackVariant       string        `yaml:"fallback_variant"`
	SystemPromptPath      string        `yaml:"system_prompt_path"`
	SystemPrompt          string        `yaml:"system_prompt"`
	Retry                 RetrySchedule `yaml:"retry"`
	MaxRegenerationRounds int           `yaml:"max_regeneration_rounds"`
	Confidence            Thresholds    `yaml:"confidence"`
	Filter                FilterConfig  `yaml:"filter"`
}

const defaultSystemPrompt = `You are Spurly, a messaging assistant that writes short, natural replies Party A could send to Party B.
Never be crude, manipulative or unsafe. Keep every reply under 200 characters. Output only what is asked for.`

// DefaultConfig returns the stock variant table, filter lists and schedule.
func DefaultConfig() Config {
	return Config{
		Variants: VariantTable{
			{ID: "main", Description: "Friendly (emotionally open, upbeat, optimistic, receptive, engaging)"},
			{ID: "warm", Description: "Warm (lighthearted, kind, empathetic, sincere, thoughtful)"},
			{ID: "cool", Description: "Cool (carefree, casual, cool and calm, dry, occasionally sarcastic)"},
			{ID: "playful", Description: "Playful (humorous, joking, good-natured teasing, occasionally flirty)"},
		},
		FallbackVariant: "warm",
		SystemPrompt:    defaultSystemPrompt,
		Retry: RetrySchedule{
			Attempts:                3,
			CreativeTemperature:     0.9,
			ConservativeTemperature: 0.65,
			SafetySuffix:            "\nKeep all outputs safe, short, and friendly.\n",
			MaxTokens:               600,
		},
		MaxRegenerationRounds: 10,
		Confidence:            Thresholds{High: 0.8, Medium: 0.5},
		Filter: FilterConfig{
			Blacklist: []string{
				"Challenge accepted",
				"Sorry not sorry",
				"Netflix and chill",
				"Roast me",
				"Literally dying",
			},
			ExpiredPhrases: []string{"vibe check", "that's cap"},
			EmojiSpam:      `[\x{1F600}-\x{1F64F}]{4,}`,
			ASCIIArt:       `[|_\-/\\]{5,}`,
			CapsLock:       `[A-Z\s]{12,}`,
			ConflictRules: []ConflictRule{{
				Name:      "sober_other_party",
				Attribute: "drinking",
				Equals:    "Never",
				Keywords:  []string{"wine", "beer", "drink", "bar", "shots", "drinks"},
			}},
		},
	}
}

// Validate reports configuration that would make every generation fail.
func (c Config) Validate() error {
	if len(c.Variants) == 0 {
		return errors.Wrap(ErrInvalidVariantSet, "no variants configured")
	}
	seen := make(map[string]bool, len(c.Variants))
	for _, v := range c.Variants {
		if v.ID == "" {
			return errors.Wrap(ErrInvalidVariantSet, "variant with empty id")
		}
		if seen[v.ID] {
			return errors.Wrapf(ErrInvalidVariantSet, "duplicate variant %q", v.ID)
		}
		seen[v.ID] = true
	}
	if !seen[c.FallbackVariant] {
		return errors.Wrapf(ErrInvalidVariantSet, "fallback variant %q is not configured", c.FallbackVariant)
	}
	if c.Retry.Attempts < 1 {
		return errors.Errorf("retry attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.MaxRegenerationRounds < 0 {
		return errors.Errorf("max regeneration rounds must not be negative, got %d", c.MaxRegenerationRounds)
	}
	if c.Confidence.Medium > c.Confidence.High {
		return errors.Errorf("confidence thresholds out of order: medium %.2f > high %.2f", c.Confidence.Medium, c.Confidence.High)
	}
	return nil
}
