package generator

import "time"

// Profile holds the attributes of either the requesting user or the other party.
type Profile struct {
	ID                string   `json:"id" yaml:"id"`
	OwnerID           string   `json:"owner_id,omitempty" yaml:"owner_id"`
	Name              string   `json:"name,omitempty" yaml:"name"`
	Age               int      `json:"age,omitempty" yaml:"age"`
	Gender            string   `json:"gender,omitempty" yaml:"gender"`
	Pronouns          string   `json:"pronouns,omitempty" yaml:"pronouns"`
	School            string   `json:"school,omitempty" yaml:"school"`
	Job               string   `json:"job,omitempty" yaml:"job"`
	Drinking          string   `json:"drinking,omitempty" yaml:"drinking"`
	Ethnicity         string   `json:"ethnicity,omitempty" yaml:"ethnicity"`
	Hometown          string   `json:"hometown,omitempty" yaml:"hometown"`
	Greenlights       []string `json:"greenlights,omitempty" yaml:"greenlights"`
	Redlights         []string `json:"redlights,omitempty" yaml:"redlights"`
	PersonalityTraits []string `json:"personality_traits,omitempty" yaml:"personality_traits"`
	// SelectedVariants is only meaningful on a user profile.
	SelectedVariants []string `json:"selected_variants,omitempty" yaml:"selected_variants"`
}

// Attribute returns a scalar attribute by its lower-case name, or "" when unset.
func (p *Profile) Attribute(name string) string {
	if p == nil {
		return ""
	}
	switch name {
	case "name":
		return p.Name
	case "gender":
		return p.Gender
	case "pronouns":
		return p.Pronouns
	case "school":
		return p.School
	case "job":
		return p.Job
	case "drinking":
		return p.Drinking
	case "ethnicity":
		return p.Ethnicity
	case "hometown":
		return p.Hometown
	}
	return ""
}

// Turn is one message in a conversation.
type Turn struct {
	Speaker string `json:"speaker" yaml:"speaker"`
	Text    string `json:"text" yaml:"text"`
}

// Conversation is a stored transcript between a user and a connection.
type Conversation struct {
	ID           string    `json:"id" yaml:"id"`
	UserID       string    `json:"user_id" yaml:"user_id"`
	ConnectionID string    `json:"connection_id,omitempty" yaml:"connection_id"`
	Turns        []Turn    `json:"turns" yaml:"turns"`
	Situation    string    `json:"situation,omitempty" yaml:"situation"`
	Topic        string    `json:"topic,omitempty" yaml:"topic"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// Spur is one generated reply suggestion for a single variant.
type Spur struct {
	UserID         string    `json:"user_id"`
	SpurID         string    `json:"spur_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	ConnectionID   string    `json:"connection_id,omitempty"`
	Situation      string    `json:"situation,omitempty"`
	Topic          string    `json:"topic,omitempty"`
	Variant        string    `json:"variant"`
	Tone           string    `json:"tone,omitempty"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}
