package generator

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// GenerateRequest is one caller request for spurs.
type GenerateRequest struct {
	UserID         string
	ConnectionID   string
	ConversationID string
	Situation      string
	Topic          string
	// Variants to generate; empty means the user's selection, else every configured variant.
	Variants        []string
	ProfileOCRTexts []string
	PhotoTraits     [][]string
}

// Engine 负责根据上下文生成并过滤 spur，并对失败的变体重新生成。
// It holds only read-only configuration and a shared LLMClient, so one Engine
// serves concurrent requests.
type Engine struct {
	cfg        Config
	store      Store
	invoker    *Invoker
	inferencer *Inferencer
	filter     *Filter
	logger     *log.Logger
	now        func() time.Time
	newID      func(userID string) string
}

// Option customizes an Engine.
type Option func(*Engine)

func WithLogger(l *log.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithIDFunc(f func(userID string) string) Option { return func(e *Engine) { e.newID = f } }

// NewEngine validates cfg, loads the system prompt once and compiles the filter.
// store may be nil, in which case every lookup comes back empty.
func NewEngine(llm LLMClient, store Store, cfg Config, opts ...Option) (*Engine, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	filter, err := NewFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}
	system, err := LoadSystemPrompt(cfg)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		store:  store,
		filter: filter,
		logger: log.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func(userID string) string { return userID + ":" + uuid.NewString() },
	}
	for _, o := range opts {
		o(e)
	}
	e.invoker = NewInvoker(llm, system, cfg.Retry, e.logger.WithPrefix("invoker"))
	e.inferencer = NewInferencer(llm, system, cfg.Retry.ConservativeTemperature, e.logger.WithPrefix("inference"))
	return e, nil
}

// LoadSystemPrompt reads cfg.SystemPromptPath when set, else returns cfg.SystemPrompt.
func LoadSystemPrompt(cfg Config) (string, error) {
	if cfg.SystemPromptPath == "" {
		return strings.TrimSpace(cfg.SystemPrompt), nil
	}
	b, err := os.ReadFile(cfg.SystemPromptPath)
	if err != nil {
		return "", errors.Wrap(err, "read system prompt")
	}
	return strings.TrimSpace(string(b)), nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Generate returns one Spur per requested variant after all regeneration rounds.
// Only an invalid variant set is reported as an error; every other failure
// degrades to fallback or empty text.
func (e *Engine) Generate(ctx context.Context, req GenerateRequest) ([]Spur, error) {
	sess, err := e.NewSession(ctx, req)
	if err != nil {
		return nil, err
	}
	return sess.Run(ctx)
}

// NewSession resolves variants, loads collaborator records, runs inference
// and assembles the context bundle. No spur is generated yet.
func (e *Engine) NewSession(ctx context.Context, req GenerateRequest) (*Session, error) {
	user := e.loadUser(ctx, req.UserID)

	variants, err := e.ResolveVariants(req.Variants, user)
	if err != nil {
		return nil, err
	}

	connectionID := req.ConnectionID
	if connectionID == "" && e.store != nil && req.UserID != "" {
		connectionID, err = e.store.ActiveConnection(ctx, req.UserID)
		if err != nil {
			e.logger.Warn("active connection lookup failed", "user_id", req.UserID, "error", err)
			connectionID = ""
		}
	}
	other := e.loadConnection(ctx, req.UserID, connectionID)
	conv := e.loadConversation(ctx, req.UserID, req.ConversationID)

	situation := strings.TrimSpace(req.Situation)
	topic, dropped := ModerateTopic(req.Topic)
	if dropped {
		e.logger.Info("topic dropped by moderation", "user_id", req.UserID)
	}
	if conv != nil {
		if situation == "" {
			situation = conv.Situation
		}
		if topic == "" && !dropped {
			topic, _ = ModerateTopic(conv.Topic)
		}
	}

	tone := ""
	if conv != nil && len(conv.Turns) > 0 {
		if inf := e.inferencer.InferTone(ctx, conv.Turns[len(conv.Turns)-1]); e.cfg.Confidence.Trusted(inf.Confidence) {
			tone = inf.Label
		}
		if situation == "" {
			if inf := e.inferencer.InferSituation(ctx, conv.Turns); e.cfg.Confidence.Trusted(inf.Confidence) {
				situation = inf.Label
			}
		}
	}

	bundle := Assemble(AssembleInput{
		User:            user,
		Other:           other,
		Conversation:    conv,
		Situation:       situation,
		Topic:           topic,
		Tone:            tone,
		ProfileOCRTexts: req.ProfileOCRTexts,
		PhotoTraits:     req.PhotoTraits,
	})
	e.logger.Debug("context assembled", "user_id", req.UserID, "context", bundle.Render())

	return newSession(e, req.UserID, connectionID, variants, bundle), nil
}

// ResolveVariants normalizes a requested subset into configured order.
// An empty request falls back to user's selection, then to every configured variant.
func (e *Engine) ResolveVariants(requested []string, user *Profile) ([]string, error) {
	ids := requested
	if len(ids) == 0 && user != nil {
		ids = user.SelectedVariants
	}
	known := e.cfg.Variants.IDs()
	if len(ids) == 0 {
		return known, nil
	}
	ids = lo.Uniq(ids)
	if unknown := lo.Without(ids, known...); len(unknown) > 0 {
		return nil, errors.Wrapf(ErrInvalidVariantSet, "unknown variants %v", unknown)
	}
	return lo.Filter(known, func(id string, _ int) bool { return lo.Contains(ids, id) }), nil
}

func (e *Engine) loadUser(ctx context.Context, userID string) *Profile {
	if e.store != nil && userID != "" {
		p, err := e.store.UserProfile(ctx, userID)
		if err == nil && p != nil {
			return p
		}
		e.logger.Warn("user profile unavailable", "user_id", userID, "error", err)
	}
	return &Profile{ID: userID}
}

func (e *Engine) loadConnection(ctx context.Context, userID, connectionID string) *Profile {
	if e.store == nil || connectionID == "" {
		return nil
	}
	p, err := e.store.ConnectionProfile(ctx, userID, connectionID)
	if err != nil {
		e.logger.Warn("connection profile unavailable", "user_id", userID, "connection_id", connectionID, "error", err)
		return nil
	}
	return p
}

func (e *Engine) loadConversation(ctx context.Context, userID, conversationID string) *Conversation {
	if e.store == nil || conversationID == "" {
		return nil
	}
	c, err := e.store.Conversation(ctx, userID, conversationID)
	if err != nil {
		e.logger.Warn("conversation unavailable", "user_id", userID, "conversation_id", conversationID, "error", err)
		return nil
	}
	return c
}
