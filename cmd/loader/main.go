package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"policy-rag/internal/adapter/filewatcher"
	"policy-rag/internal/adapter/repository"
	"policy-rag/internal/domain"
	"policy-rag/internal/infra"
	"policy-rag/internal/infra/config"
	"policy-rag/internal/infra/logger"
	"policy-rag/internal/usecase"

	llmadapter "policy-rag/internal/adapter/llm"
)

const policyFileSuffix = "_policies.json"

func main() {
	root := &cobra.Command{
		Use:   "loader",
		Short: "Index policy documents into the vector store",
	}
	root.AddCommand(newLoadCmd(), newWatchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLoadCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Index every provider policy file in the data directory once",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newLoaderEnv(cmd.Context(), dataDir)
			if err != nil {
				return err
			}
			defer env.close()
			return env.loadAll(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory holding *_policies.json files (default from config)")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Index all policy files, then re-index files as they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env, err := newLoaderEnv(ctx, dataDir)
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.loadAll(ctx); err != nil {
				return err
			}
			return env.watch(ctx)
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory holding *_policies.json files (default from config)")
	return cmd
}

// loaderEnv bundles the wiring shared by the load and watch commands.
type loaderEnv struct {
	cfg     *config.Config
	dataDir string
	ingest  usecase.IngestPoliciesUsecase
	logger  *slog.Logger
	close   func()
}

func newLoaderEnv(ctx context.Context, dataDir string) (*loaderEnv, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New()
	slog.SetDefault(log)

	if dataDir == "" {
		dataDir = cfg.Loader.DataDir
	}

	dbPool, err := infra.NewPostgresDB(ctx, cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	fragmentRepo := repository.NewFragmentRepository(dbPool)
	txManager := repository.NewPostgresTransactionManager(dbPool)
	embedder := llmadapter.NewOpenAIEmbedder(
		cfg.LLM.BaseURL,
		cfg.LLM.APIKey,
		cfg.LLM.EmbeddingModel,
		time.Duration(cfg.LLM.TimeoutSeconds)*time.Second,
	)

	var limiter *rate.Limiter
	if cfg.Loader.EmbedRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Loader.EmbedRatePerSecond), 1)
	}

	ingest := usecase.NewIngestPoliciesUsecase(
		fragmentRepo,
		txManager,
		domain.NewChunker(),
		embedder,
		limiter,
		cfg.Loader.EmbedBatchSize,
		log,
	)

	return &loaderEnv{
		cfg:     cfg,
		dataDir: dataDir,
		ingest:  ingest,
		logger:  log,
		close:   dbPool.Close,
	}, nil
}

// loadAll indexes every provider file in the data directory, one goroutine
// per file. Embedding calls share the rate limiter, so concurrency here
// parallelizes chunking and storage without flooding the embedding API.
func (env *loaderEnv) loadAll(ctx context.Context) error {
	paths, err := filepath.Glob(filepath.Join(env.dataDir, "*"+policyFileSuffix))
	if err != nil {
		return fmt.Errorf("scan data dir: %w", err)
	}
	if len(paths) == 0 {
		env.logger.Warn("no policy files found", slog.String("dir", env.dataDir))
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, path := range paths {
		g.Go(func() error {
			return env.loadFile(ctx, path)
		})
	}
	return g.Wait()
}

func (env *loaderEnv) loadFile(ctx context.Context, path string) error {
	provider := providerFromPath(path)
	if provider == "" {
		env.logger.Warn("skipping file with no provider prefix", slog.String("path", path))
		return nil
	}

	policies, err := readPolicyFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	out, err := env.ingest.Execute(ctx, usecase.IngestPoliciesInput{
		Provider: provider,
		Policies: policies,
	})
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}

	env.logger.Info("provider file indexed",
		slog.String("provider", provider),
		slog.Int("policies", out.PolicyCount),
		slog.Int("fragments", out.FragmentCount))
	return nil
}

func (env *loaderEnv) watch(ctx context.Context) error {
	watcher, err := filewatcher.New(env.logger)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	changed, err := watcher.Watch(ctx, env.dataDir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", env.dataDir, err)
	}

	env.logger.Info("watching for policy changes", slog.String("dir", env.dataDir))
	for path := range changed {
		if !strings.HasSuffix(path, policyFileSuffix) {
			continue
		}
		if err := env.loadFile(ctx, path); err != nil {
			env.logger.Error("re-index failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
	return ctx.Err()
}

// providerFromPath derives the provider tag from a file name such as
// uhc_policies.json.
func providerFromPath(path string) string {
	name := filepath.Base(path)
	prefix := strings.TrimSuffix(name, policyFileSuffix)
	if prefix == name {
		return ""
	}
	return strings.ToUpper(prefix)
}

// readPolicyFile parses a provider file, accepting either a bare JSON array
// of policies or an object wrapping them under "policies".
func readPolicyFile(path string) ([]usecase.PolicyDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var policies []usecase.PolicyDocument
	if err := json.Unmarshal(raw, &policies); err == nil {
		return policies, nil
	}

	var wrapped struct {
		Policies []usecase.PolicyDocument `json:"policies"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("parse policy json: %w", err)
	}
	return wrapped.Policies, nil
}
