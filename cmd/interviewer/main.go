package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/workerpool"

	ivconfig "github.com/voicetyped/interviewer/config"
	"github.com/voicetyped/interviewer/internal/audio"
	"github.com/voicetyped/interviewer/internal/httputil"
	"github.com/voicetyped/interviewer/internal/interview"
	"github.com/voicetyped/interviewer/internal/interview/handler"
	"github.com/voicetyped/interviewer/internal/speech/registry"
	"github.com/voicetyped/interviewer/pkg/events"
	"github.com/voicetyped/interviewer/pkg/hooks"
	"github.com/voicetyped/interviewer/pkg/profile"
	"github.com/voicetyped/interviewer/pkg/webhook"
	webhookapi "github.com/voicetyped/interviewer/pkg/webhook/api"

	// Register speech, chat and avatar backends via init().
	_ "github.com/voicetyped/interviewer/internal/speech/backends/deepgram"
	_ "github.com/voicetyped/interviewer/internal/speech/backends/elevenlabs"
	_ "github.com/voicetyped/interviewer/internal/speech/backends/google"
	_ "github.com/voicetyped/interviewer/internal/speech/backends/hookavatar"
	_ "github.com/voicetyped/interviewer/internal/speech/backends/openai"
	_ "github.com/voicetyped/interviewer/internal/speech/backends/piper"
	_ "github.com/voicetyped/interviewer/internal/speech/backends/sadtalker"
	_ "github.com/voicetyped/interviewer/internal/speech/backends/whisper"
)

const defaultPool = "__default__pool_name__"

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using the environment")
	}

	cfg, err := config.LoadWithOIDC[ivconfig.InterviewConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()
	needsDB := cfg.PersistExchanges || cfg.WebhooksEnabled

	opts := []frame.Option{
		frame.WithConfig(&cfg),
		frame.WithName("interviewer"),
		frame.WithRegisterPublisher(eventRef, eventURL),
		frame.WithWorkerPoolOptions(
			workerpool.WithPoolCount(cfg.WorkerPoolCount),
			workerpool.WithSinglePoolCapacity(cfg.WorkerPoolCapacity),
		),
	}
	if needsDB {
		opts = append(opts, frame.WithDatastore())
	}
	if cfg.AuthEnabled {
		opts = append(opts, frame.WithRegisterServerOauth2Client())
	}
	ctx, srv := frame.NewService(opts...)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	pub := events.NewPublisher(srv.QueueManager(), "interviewer", eventRef)

	backends, err := openBackends(&cfg)
	if err != nil {
		log.Fatalf("opening backends: %v", err)
	}

	loader := profile.NewLoader(cfg.ProfileDir)
	if _, err := loader.LoadAll(); err != nil {
		slog.Warn("loading profiles", slog.String("error", err.Error()))
	}
	_ = pool.Submit(ctx, func() {
		if err := loader.WatchAndReload(ctx.Done()); err != nil {
			slog.Warn("profile watcher stopped", slog.String("error", err.Error()))
		}
	})

	deps := interview.Deps{
		Backends:  backends,
		Profiles:  loader,
		Publisher: pub,
		Pool:      pool,
		Hooks:     hooks.NewExecutor(pub),
	}
	if cfg.PersistExchanges {
		store := interview.NewStore(srv.DatastoreManager().GetPool(ctx, defaultPool))
		if err := store.Migrate(ctx); err != nil {
			log.Fatalf("migrating exchange store: %v", err)
		}
		deps.Store = store
	}

	manager := interview.NewManager(interview.Config{
		Pipeline:       cfg.PipelineOptions(),
		DefaultProfile: cfg.DefaultProfile,
		SessionTTL:     cfg.SessionTTL(),
		Breaker:        cfg.Breaker(),
	}, deps)
	manager.StartReaper(ctx)
	defer manager.Shutdown(context.WithoutCancel(ctx))

	var openLocal handler.DeviceOpener
	if cfg.AudioDevice == ivconfig.DeviceLocal {
		openLocal = func() (audio.Device, error) {
			dev, err := audio.OpenPortAudio(cfg.SampleRate, cfg.PlaybackRate, cfg.BlockSize)
			if err != nil {
				return nil, err
			}
			return dev, nil
		}
	}

	restMux := http.NewServeMux()
	handler.NewHandler(manager, interview.NewSummarizer(backends.LLM, cfg.ChatModel), openLocal, handler.Config{
		InputRate:      cfg.SampleRate,
		OutputRate:     cfg.PlaybackRate,
		AllowedOrigins: cfg.Origins(),
	}).RegisterRoutes(restMux)

	var initOpts []frame.Option
	if cfg.WebhooksEnabled {
		repo := webhook.NewRepository(srv.DatastoreManager().GetPool(ctx, defaultPool))
		if err := repo.Migrate(ctx); err != nil {
			log.Fatalf("migrating webhook store: %v", err)
		}
		deliverer := webhook.NewDeliverer(repo, cfg.DelivererConfig(), pool)
		sub := &webhook.Subscriber{Endpoints: repo, Deliverer: deliverer, Pool: pool}
		if cfg.WebhookDispatch == "local" {
			_ = pool.Submit(ctx, func() { sub.Run(ctx, pub) })
		} else {
			initOpts = append(initOpts, frame.WithRegisterSubscriber(eventRef+".webhooks", eventURL, sub))
		}
		webhookapi.NewHandler(repo, deliverer).RegisterRoutes(restMux)
	}

	var api http.Handler = restMux
	if cfg.AuthEnabled {
		api = httputil.Authenticated(restMux, srv.SecurityManager().GetAuthenticator(ctx))
	}
	mux := http.NewServeMux()
	mux.Handle("/api/", api)

	initOpts = append(initOpts, frame.WithHTTPHandler(httputil.H2CHandler(httputil.Logging(mux))))
	srv.Init(ctx, initOpts...)

	slog.Info("interviewer ready",
		slog.String("asr", cfg.ASRBackend),
		slog.String("tts", cfg.TTSBackend),
		slog.String("llm", cfg.LLMBackend),
		slog.String("avatar", cfg.AvatarBackend),
		slog.String("device", cfg.AudioDevice))

	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}

// openBackends instantiates the configured model backends.
func openBackends(cfg *ivconfig.InterviewConfig) (interview.Backends, error) {
	var b interview.Backends
	var err error
	if b.ASR, err = registry.ASR.Create(cfg.ASRBackend, cfg.BackendConfig(ivconfig.KindASR)); err != nil {
		return b, err
	}
	if b.TTS, err = registry.TTS.Create(cfg.TTSBackend, cfg.BackendConfig(ivconfig.KindTTS)); err != nil {
		return b, err
	}
	if b.LLM, err = registry.LLM.Create(cfg.LLMBackend, cfg.BackendConfig(ivconfig.KindLLM)); err != nil {
		return b, err
	}
	if cfg.AvatarBackend != "" {
		if b.Animator, err = registry.Avatar.Create(cfg.AvatarBackend, cfg.BackendConfig(ivconfig.KindAvatar)); err != nil {
			return b, err
		}
	}
	return b, nil
}
