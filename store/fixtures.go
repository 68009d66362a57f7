package store

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"spurly/generator"
)

// Fixtures seeds a store, mostly for local runs against the mock LLM.
type Fixtures struct {
	Users         []generator.Profile      `yaml:"users"`
	Connections   []generator.Profile      `yaml:"connections"`
	Active        map[string]string        `yaml:"active"`
	Conversations []generator.Conversation `yaml:"conversations"`
}

// LoadFixtures reads a YAML fixtures file and writes every record into s.
// Connections are owned by their owner_id.
func LoadFixtures(ctx context.Context, s Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read fixtures")
	}
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return errors.Wrap(err, "parse fixtures")
	}
	for i := range fx.Users {
		if err := s.PutUserProfile(ctx, &fx.Users[i]); err != nil {
			return err
		}
	}
	for i := range fx.Connections {
		c := &fx.Connections[i]
		if err := s.PutConnectionProfile(ctx, c.OwnerID, c); err != nil {
			return errors.Wrapf(err, "connection %s", c.ID)
		}
	}
	for user, conn := range fx.Active {
		if err := s.SetActiveConnection(ctx, user, conn); err != nil {
			return err
		}
	}
	for i := range fx.Conversations {
		if err := s.PutConversation(ctx, &fx.Conversations[i]); err != nil {
			return err
		}
	}
	return nil
}
