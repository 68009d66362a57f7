package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"spurly/config"
	"spurly/generator"
	"spurly/server"
	"spurly/store"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml, e.g. config/config.example.yaml (defaults to built-in config)")
	serve := flag.Bool("serve", false, "start web server")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	userID := flag.String("user", "", "user id for one-shot generation")
	connectionID := flag.String("connection", "", "connection id (defaults to the user's active connection)")
	conversationID := flag.String("conversation", "", "conversation id")
	situation := flag.String("situation", "", "situation label")
	topic := flag.String("topic", "", "topic to steer the reply")
	variants := flag.String("variants", "", "comma-separated variants (defaults to the user's selection)")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}
	llm, err := buildLLM(cfg)
	if err != nil {
		fail(err)
	}
	st, err := buildStore(cfg)
	if err != nil {
		fail(err)
	}
	defer st.Close()

	engine, err := generator.NewEngine(llm, st, cfg.Generation, generator.WithLogger(logger.WithPrefix("generator")))
	if err != nil {
		fail(err)
	}

	// Web server mode
	if *serve {
		srv, err := server.New(engine, st, logger.WithPrefix("server"))
		if err != nil {
			fail(err)
		}
		listen := cfg.ServerAddr
		if *addr != "" {
			listen = *addr
		}
		if listen == "" {
			listen = ":8080"
		}
		logger.Info("Starting web server", "addr", listen, "llm", cfg.LLM.Provider, "store", cfg.Store.Driver)
		httpServer := &http.Server{Addr: listen, Handler: srv.Routes(), ReadHeaderTimeout: 10 * time.Second}
		if err := httpServer.ListenAndServe(); err != nil {
			fail(err)
		}
		return
	}

	if *userID == "" {
		fail(fmt.Errorf("--user is required unless --serve is set"))
	}
	req := generator.GenerateRequest{
		UserID:         *userID,
		ConnectionID:   *connectionID,
		ConversationID: *conversationID,
		Situation:      *situation,
		Topic:          *topic,
	}
	if *variants != "" {
		req.Variants = strings.Split(*variants, ",")
	}

	logger.Info("[cli] generating", "user", req.UserID, "variants", req.Variants)
	spurs, err := engine.Generate(context.Background(), req)
	if err != nil {
		fail(err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(spurs); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func buildLLM(cfg config.Config) (generator.LLMClient, error) {
	switch cfg.LLM.Provider {
	case "mock":
		return generator.MockLLM{}, nil
	case "openai", "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，base_url 已在 config 校验。
		return generator.NewOpenAILLMFromConfig(cfg.Settings())
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

func buildStore(cfg config.Config) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "sqlite":
		db, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		st = db
	default:
		st = store.NewMemory()
	}
	if cfg.Store.Fixtures != "" {
		if err := store.LoadFixtures(context.Background(), st, cfg.Store.Fixtures); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	return st, nil
}
