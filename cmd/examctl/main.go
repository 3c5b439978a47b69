package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/campushire/skillcheck/internal/config"
	"github.com/campushire/skillcheck/internal/database"
	"github.com/campushire/skillcheck/internal/examclient"
	"github.com/campushire/skillcheck/internal/logger"
	"github.com/campushire/skillcheck/internal/questiongen"
	"github.com/campushire/skillcheck/internal/repository"
	"github.com/campushire/skillcheck/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "examctl",
		Short:        "Operate the skill verification exam service",
		SilenceUsage: true,
	}
	root.AddCommand(tokenCmd(), warmCmd(), prewarmCmd(), eventsCmd(), attemptsCmd(), rehearseCmd())
	return root
}

// viperForCmd binds a command's flags and SKILLCHECK_* environment.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("SKILLCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examctl")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/skillcheck")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "examctl: reading config file: %v\n", err)
		}
	}
	return v
}

func cliLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(os.Stderr, cfg.LogLevel, "pretty")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("api", "http://localhost:8080", "Exam API base URL")
	f.String("token", "", "Bearer token (or SKILLCHECK_TOKEN)")
}

// ─── Server-side commands ───────────────────────────────────────────

type backend struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func connect(ctx context.Context, cfg *config.Config) (*backend, error) {
	log := cliLogger(cfg)
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &backend{pool: pool, rdb: rdb, log: log}, nil
}

func (b *backend) Close() {
	b.rdb.Close()
	b.pool.Close()
}

func (b *backend) examService(gen questiongen.Generator, cfg *config.Config) *service.ExamService {
	return service.NewExamService(
		repository.NewUserRepository(b.pool),
		repository.NewSkillExamRepository(b.pool),
		gen, b.rdb, service.ExamDefaultsFromConfig(cfg), b.log)
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with JWT_SECRET (development only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viperForCmd(cmd)
			email := v.GetString("email")
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			tok, err := service.NewAuthService(config.Load()).IssueToken(email, v.GetString("name"))
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Candidate email")
	cmd.Flags().String("name", "", "Display name")
	return cmd
}

func warmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warm SKILL...",
		Short: "Generate and store exams ahead of the first candidate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Load()
			b, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			gen, closeGen, err := questiongen.FromConfig(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeGen()

			svc := b.examService(gen, cfg)
			for _, skill := range args {
				exam, err := svc.Resolve(ctx, skill)
				if err != nil {
					return fmt.Errorf("%s: %w", skill, err)
				}
				fmt.Printf("%s\t%s\t%s\n", exam.ID, exam.Category, exam.SkillName)
			}
			return nil
		},
	}
	return cmd
}

func prewarmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prewarm",
		Short: "Load every stored exam into the Redis cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.Load()
			b, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			// Prewarming only reads stored exams; no generator is needed.
			n, err := b.examService(nil, cfg).PrewarmCaches(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("cached %d exams\n", n)
			return nil
		},
	}
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the proctoring audit trail of one candidate's exam",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viperForCmd(cmd)
			examID, err := uuid.Parse(v.GetString("exam-id"))
			if err != nil {
				return fmt.Errorf("--exam-id: %w", err)
			}
			email := v.GetString("email")
			if email == "" {
				return fmt.Errorf("--email is required")
			}

			ctx := cmd.Context()
			cfg := config.Load()
			b, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			events, err := repository.NewProctorEventRepository(b.pool).ListByExamUser(ctx, examID, email)
			if err != nil {
				return err
			}
			return printJSON(events)
		},
	}
	cmd.Flags().String("exam-id", "", "Exam UUID")
	cmd.Flags().String("email", "", "Candidate email")
	return cmd
}

// ─── Client-side commands ───────────────────────────────────────────

func attemptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "List the token holder's exam attempts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viperForCmd(cmd)
			client := examclient.New(v.GetString("api"), v.GetString("token"))
			list, err := client.Attempts(cmd.Context(), v.GetString("skill"), v.GetInt("limit"))
			if err != nil {
				return err
			}
			return printJSON(list)
		},
	}
	addClientFlags(cmd)
	cmd.Flags().String("skill", "", "Only attempts for this skill")
	cmd.Flags().Int("limit", 20, "Maximum attempts to list")
	return cmd
}
