package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"BCISpeller/internal/adapter/acquisition"
	"BCISpeller/internal/adapter/classifier"
	"BCISpeller/internal/ai"
	"BCISpeller/internal/app/runner"
	"BCISpeller/internal/app/trial"
	"BCISpeller/internal/config"
	"BCISpeller/internal/service/audio"
	"BCISpeller/internal/service/command"
	"BCISpeller/internal/service/flashing"
	"BCISpeller/internal/service/notify"
	"BCISpeller/internal/service/recorder"
	"BCISpeller/internal/service/state"
	"BCISpeller/internal/service/suggest"
	"BCISpeller/internal/service/ui"
	"BCISpeller/internal/service/voice"
)

func main() {
	cfg := config.NewConfig()

	// создаём регистратор zap
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.LogJSON && !cfg.DebugMode {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	sugar.Infow(
		"Starting speller",
		"DebugMode", cfg.DebugMode,
		"GridSize", cfg.GridSize,
		"Strategy", cfg.Strategy,
		"Source", cfg.Acquisition.Source,
	)

	if err := run(cfg, sugar); err != nil {
		sugar.Errorw("Speller stopped with error", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	sugar.Infow("Speller stopped")
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	// Graceful shutdown on Ctrl+C / SIGTERM
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Сигнал не отменяет фоновые задачи: текущий trial должен дочитать
	// сэмплы. Они гасятся после выхода цикла сессий.
	g, gctx := errgroup.WithContext(context.Background())
	ctx, stopWork := context.WithCancel(gctx)
	defer stopWork()

	// Источник сэмплов
	queue := acquisition.NewQueue(cfg.Acquisition.BufferSize)
	switch cfg.Acquisition.Source {
	case "websocket":
		bridge := acquisition.NewBridge(cfg.Acquisition.URL, cfg.Acquisition.Channels, queue, logger)
		g.Go(func() error { return bridge.Run(ctx) })
	default:
		stub := acquisition.NewStub(queue, cfg.Acquisition.Channels, cfg.Timing.SamplePeriod(), logger)
		g.Go(func() error { return stub.Run(ctx) })
	}

	// Подсказки
	getter, err := newGetter(ctx, g, cfg, logger)
	if err != nil {
		return err
	}

	player := audio.New(0)

	var opts []state.Option
	if cfg.Voice.Enabled {
		speaker, err := newSpeaker(ctx, cfg.Voice, player, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return speaker.Run(ctx) })
		opts = append(opts, state.WithCommitHook(speaker.Say))
	}

	defaults := state.Params{
		Name:        cfg.Session.Name,
		Comment:     cfg.Session.Comment,
		Target:      cfg.Session.Target,
		Repetitions: cfg.Repetitions,
		Cycles:      cfg.CycleLimit,
	}
	machine := state.New(getter, cfg.MaxSuggestions, defaults, logger, opts...)

	strategy, err := flashing.New(cfg.Strategy, cfg.GridSize, nil)
	if err != nil {
		return err
	}
	decoder := command.NewDecoder(cfg.GridSize, len(suggest.T9Charsets))
	timing := trial.NewTiming(cfg.Timing)

	// Запись сэмплов
	var rec interface {
		trial.Recorder
		runner.Hooks
	} = recorder.Nop{}
	if cfg.RecordsDir != "" {
		r := recorder.New(cfg.RecordsDir, recorder.Layout{
			GridSize:        cfg.GridSize,
			Strategy:        cfg.Strategy,
			Channels:        cfg.Acquisition.Channels,
			SampleRateHz:    cfg.Timing.SampleRateHz,
			FlashDuration:   cfg.Timing.FlashDuration,
			BreakDuration:   cfg.Timing.BreakDuration,
			BaselineSamples: timing.BaselineSamples,
			EpochSize:       timing.EpochSize,
			Stride:          timing.Stride,
		}, logger)
		g.Go(func() error { return r.Run(ctx) })
		rec = r
	}

	hooks := runner.MultiHooks{rec}
	if cfg.Sounds.Enabled {
		hooks = append(hooks, notify.NewSoundNotifier(cfg.Sounds, player, logger))
	}

	scheduler := trial.New(strategy, queue, classifier.Metered{Classifier: classifier.NewStub()}, machine, rec, timing, logger)
	speller := runner.New(scheduler, decoder, machine, hooks, cfg.Timing.IdlePoll, logger)

	// Мост к интерфейсу
	if cfg.UIServer.Enabled {
		srv := ui.NewServer(cfg.UIServer, machine, defaults, logger)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			return srv.Stop(context.WithoutCancel(ctx))
		})
	} else {
		// Без интерфейса сессию некому запустить
		machine.StartSession(defaults)
	}

	supervise(sigCtx, ctx, stopWork, g, machine, speller)
	return g.Wait()
}

// supervise по сигналу только просит машину завершиться; контекст задач
// отменяется, когда цикл сессий вернулся.
func supervise(sigCtx, workCtx context.Context, stopWork context.CancelFunc, g *errgroup.Group, machine interface{ RequestShutdown() }, loop interface{ Run(context.Context) error }) {
	g.Go(func() error {
		select {
		case <-sigCtx.Done():
			machine.RequestShutdown()
		case <-workCtx.Done():
		}
		return nil
	})
	g.Go(func() error {
		defer stopWork()
		return loop.Run(workCtx)
	})
}

func newGetter(ctx context.Context, g *errgroup.Group, cfg *config.Config, logger *zap.SugaredLogger) (*suggest.Getter, error) {
	var predictor suggest.Predictor = suggest.StubT9{}
	if cfg.Dictionary.Path != "" {
		dict, err := suggest.NewDictionary(cfg.Dictionary.Path, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Dictionary.Watch {
			g.Go(func() error { return dict.Watch(ctx) })
		}
		predictor = dict
	}

	// nil-интерфейс, а не nil-указатель: Getter проверяет continuer на nil
	var continuer suggest.Continuer
	if cfg.LLM.Enabled {
		var client ai.Client
		if cfg.LLM.Model == "stub" {
			client = ai.NewStubClient()
		} else {
			// использует переменные окружения, напр. OPENAI_API_KEY
			oClient := openai.NewClient()
			client = ai.NewTextClient(&oClient, openai.ChatModel(cfg.LLM.Model))
		}
		continuer = suggest.NewLLM(client, cfg.LLM.Template, logger)
		logger.Infow("LLM suggestions enabled", "model", cfg.LLM.Model)
	}
	return suggest.NewGetter(predictor, continuer, logger), nil
}

func newSpeaker(ctx context.Context, cfg config.VoiceConfig, player audio.Player, logger *zap.SugaredLogger) (*voice.Speaker, error) {
	if cfg.CredentialsPath != "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		_ = os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", audio.Resolve(cfg.CredentialsPath))
	}
	tts, err := voice.NewGoogleTTS(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	context.AfterFunc(ctx, func() { _ = tts.Close() })
	return voice.NewSpeaker(tts, player, 8, logger), nil
}
