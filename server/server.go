package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"spurly/generator"
	"spurly/store"
)

// UserHeader carries the authenticated user id; authentication itself happens upstream.
const UserHeader = "X-User-ID"

const generateTimeout = 60 * time.Second

type Server struct {
	engine   *generator.Engine
	store    store.Store
	logger   *log.Logger
	validate *validator.Validate
}

func New(engine *generator.Engine, st store.Store, logger *log.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("generation engine required")
	}
	if st == nil {
		return nil, errors.New("store required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		engine:   engine,
		store:    st,
		logger:   logger,
		validate: validator.New(),
	}, nil
}

func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept", UserHeader},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}).Handler)
	router.Use(s.logMiddleware)

	router.Get("/health", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/spurs", s.handleGenerate)

		r.Get("/saved-spurs", s.handleSavedList)
		r.Post("/saved-spurs", s.handleSave)
		r.Delete("/saved-spurs/{spurID}", s.handleSavedDelete)

		r.Put("/profile", s.handleProfilePut)
		r.Put("/connections/{connectionID}", s.handleConnectionPut)
		r.Put("/active-connection", s.handleActiveConnection)
		r.Put("/conversations/{conversationID}", s.handleConversationPut)
	})
	return router
}

// --- Handlers ---

type generateReq struct {
	ConnectionID    string     `json:"connection_id"`
	ConversationID  string     `json:"conversation_id"`
	Situation       string     `json:"situation" validate:"omitempty,max=64"`
	Topic           string     `json:"topic"`
	Variants        []string   `json:"variants" validate:"omitempty,dive,required"`
	ProfileOCRTexts []string   `json:"profile_ocr_texts"`
	PhotoTraits     [][]string `json:"photo_traits"`
}

type generateResp struct {
	Spurs []generator.Spur `json:"spurs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"variants":  s.engine.Config().Variants.IDs(),
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateReq
	if !s.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()
	spurs, err := s.engine.Generate(ctx, generator.GenerateRequest{
		UserID:          userID(r),
		ConnectionID:    req.ConnectionID,
		ConversationID:  req.ConversationID,
		Situation:       req.Situation,
		Topic:           req.Topic,
		Variants:        req.Variants,
		ProfileOCRTexts: req.ProfileOCRTexts,
		PhotoTraits:     req.PhotoTraits,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResp{Spurs: spurs})
}

type saveReq struct {
	SpurID         string `json:"spur_id" validate:"required"`
	Variant        string `json:"variant" validate:"required"`
	Situation      string `json:"situation"`
	Topic          string `json:"topic"`
	Text           string `json:"text" validate:"required"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveReq
	if !s.decode(w, r, &req) {
		return
	}
	saved, err := s.store.SaveSpur(r.Context(), generator.Spur{
		UserID:         userID(r),
		SpurID:         req.SpurID,
		ConversationID: req.ConversationID,
		Variant:        req.Variant,
		Situation:      req.Situation,
		Topic:          req.Topic,
		Text:           req.Text,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleSavedList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.SavedFilter{
		Variant:   q.Get("variant"),
		Situation: q.Get("situation"),
		Keyword:   q.Get("keyword"),
		Ascending: strings.EqualFold(q.Get("sort"), "asc"),
	}
	var err error
	if f.From, err = parseTime(q.Get("from")); err != nil {
		http.Error(w, "invalid from: "+err.Error(), http.StatusBadRequest)
		return
	}
	if f.To, err = parseTime(q.Get("to")); err != nil {
		http.Error(w, "invalid to: "+err.Error(), http.StatusBadRequest)
		return
	}
	list, err := s.store.SavedSpurs(r.Context(), userID(r), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []store.SavedSpur{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSavedDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSavedSpur(r.Context(), userID(r), chi.URLParam(r, "spurID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProfileFields is the writable part of a profile apart from age. Users must
// be adults; a connection's age is checked only when given.
type ProfileFields struct {
	Name              string   `json:"name" validate:"max=100"`
	Gender            string   `json:"gender"`
	Pronouns          string   `json:"pronouns"`
	School            string   `json:"school"`
	Job               string   `json:"job"`
	Drinking          string   `json:"drinking"`
	Ethnicity         string   `json:"ethnicity"`
	Hometown          string   `json:"hometown"`
	Greenlights       []string `json:"greenlights"`
	Redlights         []string `json:"redlights"`
	PersonalityTraits []string `json:"personality_traits"`
	SelectedVariants  []string `json:"selected_variants"`
}

type userProfileReq struct {
	ProfileFields
	Age int `json:"age" validate:"required,gte=18"`
}

type connectionProfileReq struct {
	ProfileFields
	Age int `json:"age" validate:"omitempty,gte=18"`
}

func (p ProfileFields) toProfile(id string, age int) *generator.Profile {
	return &generator.Profile{
		ID:                id,
		Name:              p.Name,
		Age:               age,
		Gender:            p.Gender,
		Pronouns:          p.Pronouns,
		School:            p.School,
		Job:               p.Job,
		Drinking:          p.Drinking,
		Ethnicity:         p.Ethnicity,
		Hometown:          p.Hometown,
		Greenlights:       p.Greenlights,
		Redlights:         p.Redlights,
		PersonalityTraits: p.PersonalityTraits,
		SelectedVariants:  p.SelectedVariants,
	}
}

func (s *Server) handleProfilePut(w http.ResponseWriter, r *http.Request) {
	var req userProfileReq
	if !s.decode(w, r, &req) {
		return
	}
	if _, err := s.engine.ResolveVariants(req.SelectedVariants, nil); err != nil {
		s.writeError(w, err)
		return
	}
	p := req.toProfile(userID(r), req.Age)
	if err := s.store.PutUserProfile(r.Context(), p); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleConnectionPut(w http.ResponseWriter, r *http.Request) {
	var req connectionProfileReq
	if !s.decode(w, r, &req) {
		return
	}
	p := req.toProfile(chi.URLParam(r, "connectionID"), req.Age)
	p.SelectedVariants = nil
	if err := s.store.PutConnectionProfile(r.Context(), userID(r), p); err != nil {
		s.writeError(w, err)
		return
	}
	p.OwnerID = userID(r)
	writeJSON(w, http.StatusOK, p)
}

type activeReq struct {
	ConnectionID string `json:"connection_id"`
}

func (s *Server) handleActiveConnection(w http.ResponseWriter, r *http.Request) {
	var req activeReq
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.SetActiveConnection(r.Context(), userID(r), req.ConnectionID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type conversationReq struct {
	ConnectionID string           `json:"connection_id"`
	Situation    string           `json:"situation" validate:"omitempty,max=64"`
	Topic        string           `json:"topic"`
	Turns        []generator.Turn `json:"turns" validate:"required,min=1"`
}

func (s *Server) handleConversationPut(w http.ResponseWriter, r *http.Request) {
	var req conversationReq
	if !s.decode(w, r, &req) {
		return
	}
	c := &generator.Conversation{
		ID:           chi.URLParam(r, "conversationID"),
		UserID:       userID(r),
		ConnectionID: req.ConnectionID,
		Situation:    req.Situation,
		Topic:        req.Topic,
		Turns:        req.Turns,
	}
	if err := s.store.PutConversation(r.Context(), c); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// --- Helpers ---

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, generator.ErrInvalidVariantSet):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, generator.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

type ctxKey struct{}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			http.Error(w, "missing "+UserHeader, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		s.logger.Info("http", "method", r.Method, "path", path, "status", ww.Status(), "duration", time.Since(start))
	})
}
