package generator

import (
	"fmt"
	"strconv"
	"strings"
)

// AssembleInput is the raw material for one Bundle.
type AssembleInput struct {
	User            *Profile
	Other           *Profile
	Conversation    *Conversation
	Situation       string
	Topic           string
	Tone            string
	ProfileOCRTexts []string
	PhotoTraits     [][]string
}

// Bundle is the per-request context snapshot used to build prompts.
// It is never modified after Assemble returns.
type Bundle struct {
	User            Profile
	Other           *Profile
	Turns           []Turn
	ConversationID  string
	Situation       string
	Topic           string
	Tone            string
	ProfileOCRTexts []string
	PhotoTraits     [][]string
}

// Assemble merges the inputs into a Bundle. Profiles, turns and slices are
// copied so the bundle does not alias caller data.
func Assemble(in AssembleInput) Bundle {
	b := Bundle{
		Situation:       in.Situation,
		Topic:           in.Topic,
		Tone:            in.Tone,
		ProfileOCRTexts: append([]string(nil), in.ProfileOCRTexts...),
	}
	if in.User != nil {
		b.User = copyProfile(in.User)
	}
	if in.Other != nil {
		other := copyProfile(in.Other)
		b.Other = &other
	}
	if in.Conversation != nil {
		b.Turns = append([]Turn(nil), in.Conversation.Turns...)
		b.ConversationID = in.Conversation.ID
	}
	for _, traits := range in.PhotoTraits {
		if len(traits) == 0 {
			continue
		}
		b.PhotoTraits = append(b.PhotoTraits, append([]string(nil), traits...))
	}
	return b
}

func copyProfile(p *Profile) Profile {
	cp := *p
	cp.Greenlights = append([]string(nil), p.Greenlights...)
	cp.Redlights = append([]string(nil), p.Redlights...)
	cp.PersonalityTraits = append([]string(nil), p.PersonalityTraits...)
	cp.SelectedVariants = append([]string(nil), p.SelectedVariants...)
	return cp
}

// LastTurn returns the most recent message, if any.
func (b Bundle) LastTurn() (Turn, bool) {
	if len(b.Turns) == 0 {
		return Turn{}, false
	}
	return b.Turns[len(b.Turns)-1], true
}

// Render formats the bundle as the context block of the prompt.
func (b Bundle) Render() string {
	var sb strings.Builder
	sb.WriteString("***User Profile:***\n")
	sb.WriteString(RenderProfile(&b.User))
	sb.WriteString("\n\n")

	sb.WriteString("***Connection Profile:***\n")
	if b.Other != nil {
		sb.WriteString(RenderProfile(b.Other))
	} else {
		sb.WriteString("(no active connection)")
	}
	sb.WriteString("\n\n")

	if len(b.ProfileOCRTexts) > 0 {
		sb.WriteString("***Additional Connection Profile Info (from OCR):***\n")
		for _, t := range b.ProfileOCRTexts {
			sb.WriteString("- " + t + "\n")
		}
		sb.WriteString("\n")
	}
	if len(b.PhotoTraits) > 0 {
		sb.WriteString("***Observations from Connection's Photos:***\n")
		for _, traits := range b.PhotoTraits {
			sb.WriteString("- Inferred Traits: " + strings.Join(traits, ", ") + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("***Conversation Between User and Connection:***\n")
	for _, t := range b.Turns {
		sb.WriteString(fmt.Sprintf("%s: %s\n", speakerLabel(t.Speaker), t.Text))
	}
	sb.WriteString("\n")

	sb.WriteString("***Situation:*** " + b.Situation + "\n")
	sb.WriteString("***Topic:*** " + b.Topic + "\n")
	sb.WriteString("***Tone:*** " + b.Tone)
	return sb.String()
}

// RenderProfile renders one labeled line per populated field.
func RenderProfile(p *Profile) string {
	if p == nil {
		return ""
	}
	var lines []string
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, label+": "+value)
		}
	}
	list := func(label string, values []string) {
		if len(values) > 0 {
			lines = append(lines, label+": "+strings.Join(values, ", "))
		}
	}

	add("Name", p.Name)
	if p.Age > 0 {
		add("Age", strconv.Itoa(p.Age))
	}
	add("Gender", p.Gender)
	add("Pronouns", p.Pronouns)
	add("School", p.School)
	add("Job", p.Job)
	add("Drinking", p.Drinking)
	add("Ethnicity", p.Ethnicity)
	add("Hometown", p.Hometown)
	list("Greenlight Topics", p.Greenlights)
	list("Redlight Topics", p.Redlights)
	list("Personality Traits", p.PersonalityTraits)
	return strings.Join(lines, "\n")
}

func speakerLabel(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
