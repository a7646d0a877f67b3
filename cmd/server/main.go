package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"google.golang.org/genai"

	"modelbench/pkg/backend"
	"modelbench/pkg/benchmark"
	"modelbench/pkg/config"
	"modelbench/pkg/dispatch"
	"modelbench/pkg/judge"
	"modelbench/pkg/llm"
	"modelbench/pkg/registry"
	"modelbench/pkg/service"
	"modelbench/pkg/store"
	"modelbench/pkg/transcribe"
)

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	_ = godotenv.Load()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.FromEnv()
	ctx := context.Background()

	reg := registry.New(cfg.ProbeTTL, cfg.ProbeTimeout)
	judgeClient, judgeModel := registerAdapters(ctx, cfg, reg)
	if judgeClient == nil {
		slog.Error("no generation provider configured, judge scoring needs at least one of GEMINI_API_KEY, OPENAI_API_KEY or OLLAMA_HOST")
		os.Exit(1)
	}
	if cfg.JudgeModel == "" {
		cfg.JudgeModel = judgeModel
	}
	reg.Refresh(ctx)

	disp := dispatch.New(reg, dispatch.Options{
		NetworkPoolSize: cfg.NetworkPoolSize,
		LocalTimeout:    cfg.LocalTimeout,
		NetworkTimeout:  cfg.NetworkTimeout,
		MaxRetries:      cfg.MaxRetries,
	})

	var judgeOpts []judge.Option
	if key := cfg.GeminiAPIKey; key != "" {
		structured, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: key})
		if err != nil {
			slog.Warn("structured judge client unavailable, falling back to text parsing", "error", err)
		} else {
			judgeOpts = append(judgeOpts, judge.WithStructuredClient(structured))
		}
	}
	scorer := judge.NewScorer(judgeClient, cfg.JudgeModel, judgeOpts...)

	st, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open result store", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	hub := service.NewHub()
	orch := benchmark.New(reg, disp, scorer, st, cfg.PrimaryGenModel,
		benchmark.WithNotifier(hub.Notify),
		benchmark.WithJudgeTimeout(cfg.JudgeTimeout))

	svc := service.NewService(cfg, reg, orch, st, hub)
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)

	slog.Info("listening", "addr", cfg.Addr, "judge_model", cfg.JudgeModel)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// registerAdapters wires every provider whose credentials or endpoints
// are configured and returns the client backing the judge together
// with that provider's default judge model.
func registerAdapters(ctx context.Context, cfg *config.Config, reg *registry.Registry) (llm.Client, string) {
	// Transcription backends.
	if cfg.WhisperBinary != "" {
		reg.Register(transcribe.NewLocalWhisper(cfg.WhisperBinary, cfg.WhisperModelDir))
	}
	if cfg.WhisperRemoteURL != "" {
		reg.Register(transcribe.NewRemoteWhisper(cfg.WhisperRemoteURL))
	}
	if cfg.OpenAIAPIKey != "" {
		reg.Register(transcribe.NewWhisperAPI(cfg.OpenAIAPIKey))
	}
	if cfg.GoogleCredsFile != "" {
		stt, err := transcribe.NewGoogleSTT(ctx, cfg.GoogleCredsFile)
		if err != nil {
			slog.Warn("google stt disabled", "error", err)
		} else {
			reg.Register(stt)
		}
	}

	// Generation backends. The judge prefers Gemini, then OpenAI, then
	// a local Ollama daemon.
	var judgeClient llm.Client
	var judgeModel string
	if cfg.GeminiAPIKey != "" {
		gem, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			slog.Warn("gemini disabled", "error", err)
		} else {
			reg.Register(llm.NewAdapter(backend.ProviderGemini, gem, llm.DefaultGeminiModels()))
			judgeClient, judgeModel = gem, llm.JudgeDefault(llm.DefaultGeminiModels())
		}
	}
	if cfg.OpenAIAPIKey != "" {
		oa := llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		reg.Register(llm.NewAdapter(backend.ProviderOpenAI, oa, llm.DefaultOpenAIModels()))
		if judgeClient == nil {
			judgeClient, judgeModel = oa, llm.JudgeDefault(llm.DefaultOpenAIModels())
		}
	}
	if cfg.OllamaHost != "" {
		ol := llm.NewOllamaClient(cfg.OllamaHost)
		reg.Register(llm.NewAdapter(backend.ProviderOllama, ol, llm.DefaultOllamaModels()))
		if judgeClient == nil {
			judgeClient, judgeModel = ol, llm.JudgeDefault(llm.DefaultOllamaModels())
		}
	}
	if cfg.ArkAPIKey != "" {
		ark, err := llm.NewArkClient(cfg.ArkAPIKey)
		if err != nil {
			slog.Warn("ark disabled", "error", err)
		} else {
			reg.Register(llm.NewAdapter(backend.ProviderArk, ark, llm.DefaultArkModels()))
		}
	}
	return judgeClient, judgeModel
}
