// Command bench runs the same comparison across a batch of inputs and
// prints a win/loss tally. Inputs are media paths for transcription
// benchmarks and transcript text files for LLM benchmarks.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"

	"modelbench/pkg/backend"
	"modelbench/pkg/benchmark"
	"modelbench/pkg/config"
	"modelbench/pkg/dispatch"
	"modelbench/pkg/judge"
	"modelbench/pkg/llm"
	"modelbench/pkg/registry"
	"modelbench/pkg/store"
	"modelbench/pkg/transcribe"
)

func main() {
	benchType := flag.String("type", "transcription", "Benchmark type: transcription or llm_processing")
	modelA := flag.String("model-a", "", "First model id")
	modelB := flag.String("model-b", "", "Second model id")
	promptType := flag.String("prompt-type", "summary", "Prompt type for llm_processing benchmarks")
	language := flag.String("language", "", "Language hint for transcription benchmarks")
	inputsFile := flag.String("inputs", "", "File with one input reference per line (default: positional args)")
	concurrency := flag.Int("concurrency", 2, "Number of concurrent benchmark runs")
	flag.Parse()

	_ = godotenv.Load()

	if *modelA == "" || *modelB == "" {
		log.Fatal("-model-a and -model-b are required")
	}

	inputs := expandDirs(flag.Args())
	if *inputsFile != "" {
		var err error
		inputs, err = readLines(*inputsFile)
		if err != nil {
			log.Fatalf("Failed to read inputs: %v", err)
		}
	}
	if len(inputs) == 0 {
		log.Fatal("No inputs given")
	}

	cfg := config.FromEnv()
	ctx := context.Background()

	reg := registry.New(cfg.ProbeTTL, cfg.ProbeTimeout)
	judgeClient, judgeModel := registerAdapters(ctx, cfg, reg)
	if judgeClient == nil {
		log.Fatal("No generation provider configured for judging")
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
	scorer := judge.NewScorer(judgeClient, cfg.JudgeModel)

	st, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open result store: %v", err)
	}

	orch := benchmark.New(reg, disp, scorer, st, cfg.PrimaryGenModel,
		benchmark.WithJudgeTimeout(cfg.JudgeTimeout))

	var (
		mu                         sync.Mutex
		winsA, winsB, ties, broken int
	)

	paramsChan := make(chan string, len(inputs))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for input := range paramsChan {
			req := benchmark.Request{
				Type:           benchmark.Type(*benchType),
				InputReference: input,
				ModelA:         *modelA,
				ModelB:         *modelB,
				PromptType:     *promptType,
				Language:       *language,
			}
			run, err := orch.Run(ctx, req)
			if err != nil {
				log.Printf("[%s] rejected: %v", input, err)
				mu.Lock()
				broken++
				mu.Unlock()
				continue
			}

			mu.Lock()
			switch {
			case run.Status != benchmark.StatusScored:
				broken++
				log.Printf("[%s] %s: %s", input, run.Status, run.Error)
			case run.Winner == "a":
				winsA++
				log.Printf("[%s] %s wins (%.1f vs %.1f)", input, run.ModelA, run.Verdict.ScoreA, run.Verdict.ScoreB)
			case run.Winner == "b":
				winsB++
				log.Printf("[%s] %s wins (%.1f vs %.1f)", input, run.ModelB, run.Verdict.ScoreA, run.Verdict.ScoreB)
			default:
				ties++
				log.Printf("[%s] tie (%.1f vs %.1f)", input, run.Verdict.ScoreA, run.Verdict.ScoreB)
			}
			mu.Unlock()
		}
	}

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go worker()
	}
	for _, input := range inputs {
		paramsChan <- input
	}
	close(paramsChan)
	wg.Wait()

	fmt.Printf("\n%s: %d wins, %s: %d wins, %d ties, %d unscored (of %d)\n",
		*modelA, winsA, *modelB, winsB, ties, broken, len(inputs))
}

// expandDirs replaces directory arguments with the audio files inside
// them.
func expandDirs(args []string) []string {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			out = append(out, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			log.Printf("Failed to read dir %s: %v", arg, err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch filepath.Ext(e.Name()) {
			case ".wav", ".mp3", ".flac", ".ogg", ".m4a":
				out = append(out, filepath.Join(arg, e.Name()))
			}
		}
	}
	return out
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

// registerAdapters wires every provider whose credentials are present
// and returns the client backing the judge together with that
// provider's default judge model.
func registerAdapters(ctx context.Context, cfg *config.Config, reg *registry.Registry) (llm.Client, string) {
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
		if stt, err := transcribe.NewGoogleSTT(ctx, cfg.GoogleCredsFile); err == nil {
			reg.Register(stt)
		}
	}

	var judgeClient llm.Client
	var judgeModel string
	if cfg.GeminiAPIKey != "" {
		if gem, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey); err == nil {
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
		if ark, err := llm.NewArkClient(cfg.ArkAPIKey); err == nil {
			reg.Register(llm.NewAdapter(backend.ProviderArk, ark, llm.DefaultArkModels()))
		}
	}
	return judgeClient, judgeModel
}
