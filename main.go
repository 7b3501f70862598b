package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"voicebridge/config"
	"voicebridge/convo"
	"voicebridge/core"
	"voicebridge/retrieval"
	azuretts "voicebridge/services/azure/tts"
	deepgramstt "voicebridge/services/deepgram/stt"
	openaillm "voicebridge/services/openai/llm"
	"voicebridge/tagging"
)

func main() {
	var settingsPath string
	flag.StringVar(&settingsPath, "settings", "", "path to settings.json (default: SETTINGS_PATH or ./settings.json)")
	flag.Parse()

	logger := core.NewDevelopmentLogger()

	if err := godotenv.Load(".env.local"); err != nil {
		logger.With(map[string]interface{}{"error": err}).Warn("No .env.local file found or failed to load")
	}

	if settingsPath == "" {
		settingsPath = config.GetEnv("SETTINGS_PATH", "./settings.json")
	}
	settings, err := config.FromFile(settingsPath)
	if err != nil {
		logger.With(map[string]interface{}{"path": settingsPath, "error": err}).Warn("failed to load settings, using defaults")
		settings = config.Default()
	}
	settings.InjectAPIKeys(config.KeysFromEnv())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, pool, err := buildServices(ctx, settings, logger)
	if err != nil {
		logger.Fatal(err.Error())
	}

	server := &http.Server{
		Addr:    settings.ListenAddr,
		Handler: newMux(settings, services, logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Infof("listening on %s", settings.ListenAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal(err.Error())
	}

	logger.Info("Shutting down...")
	pool.Wait()
}

// buildServices wires the collaborators from the settings. The tagging pool
// is returned separately so main can wait for its workers on shutdown.
func buildServices(ctx context.Context, settings config.Settings, logger *core.Logger) (convo.Services, *tagging.Pool, error) {
	completer, err := openaillm.NewService(settings.LLM, logger)
	if err != nil {
		return convo.Services{}, nil, err
	}
	synthesizer, err := azuretts.NewService(settings.TTS, logger)
	if err != nil {
		return convo.Services{}, nil, err
	}
	transcriber, err := deepgramstt.NewService(settings.STT, logger)
	if err != nil {
		return convo.Services{}, nil, err
	}
	retriever, err := retrieval.NewClient(settings.Retrieval, logger)
	if err != nil {
		return convo.Services{}, nil, err
	}

	pool := tagging.NewPool(settings.Tagging, tagging.NewEmotionClassifier(completer), logger)
	pool.Start(ctx)

	return convo.Services{
		Completer:   completer,
		Synthesizer: synthesizer,
		Transcriber: transcriber,
		Tagger:      pool,
		Retriever:   retriever,
	}, pool, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from a separate origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func newMux(settings config.Settings, services convo.Services, logger *core.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		device := core.DeviceKind(r.URL.Query().Get("device"))
		if device != core.DeviceHardware {
			device = core.DeviceWeb
		}

		cfg := settings.Conversation
		if voice := r.URL.Query().Get("voice"); voice != "" {
			cfg.VoiceIdentity = voice
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Errorf("upgrade failed: %v", err)
			return
		}

		session := core.NewSession(device)
		manager := convo.NewManager(cfg, services, conn, session, logger)
		// Run blocks for the lifetime of the conversation; the handler
		// goroutine is the session's goroutine.
		manager.Run(r.Context())
	})

	return mux
}
