package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gridwire/gridwire/internal/cache"
	"github.com/gridwire/gridwire/internal/config"
	"github.com/gridwire/gridwire/internal/database"
	"github.com/gridwire/gridwire/internal/httpx"
	"github.com/gridwire/gridwire/internal/ingest"
	"github.com/gridwire/gridwire/internal/retrieval"
	"github.com/gridwire/gridwire/internal/scheduler"
	"github.com/gridwire/gridwire/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     *zap.SugaredLogger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "gridwire",
	Short:   "Fantasy football news aggregation",
	Long:    "Gridwire ingests fantasy football news from configured sources, deduplicates and classifies it, and serves ranked section pages.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(playersCmd)
	rootCmd.AddCommand(serveCmd)
}

func newLogger() *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	} else if cfg != nil && cfg.Logging.Level != "" {
		if parsed, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsed
		}
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	log, err := zc.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return log.Sugar()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("gridwire", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/gridwire/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources, then run 'gridwire sources sync'.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Sources:")
		fmt.Printf("  Total: %d\n", stats.TotalSources)
		fmt.Printf("  Allowed: %d\n", stats.AllowedSources)
		fmt.Println("\nArticles:")
		fmt.Printf("  Total: %d\n", stats.TotalArticles)
		fmt.Printf("  Tagged: %d\n", stats.TaggedArticles)
		fmt.Println("\nPlayers:")
		fmt.Printf("  Roster size: %d\n", stats.TotalPlayers)
		if len(stats.JobsByStatus) > 0 {
			fmt.Println("\nJobs:")
			for _, status := range []string{database.JobPending, database.JobRunning, database.JobSucceeded, database.JobFailed} {
				if n := stats.JobsByStatus[status]; n > 0 {
					fmt.Printf("  %s: %d\n", status, n)
				}
			}
		}
		return nil
	},
}

// --- ingest command ---

var (
	ingestSourceID int64
	ingestLimit    int
	ingestAll      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest articles from configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		orch := buildOrchestrator(db)
		ctx := context.Background()

		if ingestLimit == 0 {
			ingestLimit = cfg.Ingest.DefaultLimit
		}

		if ingestSourceID > 0 {
			counts, err := orch.IngestOne(ctx, ingestSourceID, ingestLimit)
			if err != nil {
				return err
			}
			fmt.Printf("Source done: %d inserted, %d updated, %d skipped\n",
				counts.Inserted, counts.Updated, counts.Skipped)
			return nil
		}

		var result *ingest.BatchResult
		if ingestAll {
			result, err = orch.IngestAll(ctx, ingestLimit)
		} else {
			result, err = orch.IngestAllowed(ctx, ingestLimit)
		}
		if err != nil {
			return err
		}

		fmt.Println("Ingestion complete:")
		fmt.Printf("  Inserted: %d\n", result.Totals.Inserted)
		fmt.Printf("  Updated: %d\n", result.Totals.Updated)
		fmt.Printf("  Skipped: %d\n", result.Totals.Skipped)

		if len(result.Sources) > 0 {
			fmt.Println("\nBy source:")
			for _, s := range result.Sources {
				if s.Err != nil {
					fmt.Printf("  %s: failed (%v)\n", s.Name, s.Err)
					continue
				}
				fmt.Printf("  %s: %d inserted, %d updated, %d skipped\n",
					s.Name, s.Counts.Inserted, s.Counts.Updated, s.Counts.Skipped)
			}
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().Int64Var(&ingestSourceID, "source", 0, "Ingest a single source by ID")
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 0, "Max candidates per source (0 = config default)")
	ingestCmd.Flags().BoolVar(&ingestAll, "all", false, "Include sources not marked allowed")
}

// --- jobs command ---

var jobsAfter int64

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect ingestion jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		jobs, err := db.ListJobs(20)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs recorded.")
			return nil
		}
		for _, j := range jobs {
			line := fmt.Sprintf("%s  %-9s %s", j.ID, j.Status, j.Type)
			if j.Message != nil {
				line += "  " + *j.Message
			}
			fmt.Println(line)
		}
		return nil
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		job, err := db.GetJob(args[0])
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("job %s not found", args[0])
		}

		fmt.Printf("ID:       %s\n", job.ID)
		fmt.Printf("Type:     %s\n", job.Type)
		fmt.Printf("Status:   %s\n", job.Status)
		fmt.Printf("Progress: %d\n", job.Progress)
		if job.Params != nil {
			fmt.Printf("Params:   %s\n", *job.Params)
		}
		if job.Message != nil {
			fmt.Printf("Message:  %s\n", *job.Message)
		}
		if job.Error != nil {
			fmt.Printf("Error:    %s\n", *job.Error)
		}
		return nil
	},
}

var jobsEventsCmd = &cobra.Command{
	Use:   "events [id]",
	Short: "Show a job's event log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		events, err := db.GetEvents(args[0], jobsAfter)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No events.")
			return nil
		}
		for _, e := range events {
			ts := ""
			if e.CreatedAt != nil {
				ts = *e.CreatedAt
			}
			fmt.Printf("%4d  %s  %-5s %s\n", e.Seq, ts, e.Level, e.Message)
		}
		return nil
	},
}

func init() {
	jobsEventsCmd.Flags().Int64Var(&jobsAfter, "after", 0, "Only events after this sequence number")
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsEventsCmd)
}

// --- sources command ---

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage article sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		sources, err := db.GetSources(false)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			fmt.Println("No sources. Define them in config.yaml and run 'gridwire sources sync'.")
			return nil
		}
		for _, s := range sources {
			icon := " "
			if s.Allowed {
				icon = "*"
			}
			fmt.Printf("  [%d] %s %s (%s)\n", s.ID, icon, s.Name, s.Provider)
			if s.LastError != nil {
				fmt.Printf("        last error: %s\n", *s.LastError)
			}
		}
		return nil
	},
}

var sourcesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync sources from the config seed list into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := syncSources(db, cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d sources from config.\n", n)
		return nil
	},
}

var sourcesAllowCmd = &cobra.Command{
	Use:   "allow [id]",
	Short: "Mark a source eligible for ingestion",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setAllowed(args[0], true) },
}

var sourcesDisallowCmd = &cobra.Command{
	Use:   "disallow [id]",
	Short: "Exclude a source from ingestion",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setAllowed(args[0], false) },
}

func setAllowed(rawID string, allowed bool) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid source ID: %s", rawID)
	}
	src, err := db.GetSource(id)
	if err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("source %d not found", id)
	}
	if err := db.SetSourceAllowed(id, allowed); err != nil {
		return err
	}
	state := "disallowed"
	if allowed {
		state = "allowed"
	}
	fmt.Printf("Source [%d] %s: %s\n", id, src.Name, state)
	return nil
}

func init() {
	sourcesCmd.AddCommand(sourcesSyncCmd)
	sourcesCmd.AddCommand(sourcesAllowCmd)
	sourcesCmd.AddCommand(sourcesDisallowCmd)
}

// --- players command ---

var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "Manage the player roster used for name resolution",
}

var playersImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import roster entries from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading roster file: %w", err)
		}

		var entries []struct {
			Key      string   `json:"key"`
			Name     string   `json:"name"`
			Position string   `json:"position"`
			Team     string   `json:"team"`
			Aliases  []string `json:"aliases"`
			Active   *bool    `json:"active"`
		}
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parsing roster file: %w", err)
		}

		imported := 0
		for _, e := range entries {
			if e.Key == "" || e.Name == "" {
				logger.Warnw("skipping roster entry without key or name", "entry", e)
				continue
			}
			p := database.Player{Key: e.Key, Name: e.Name, Aliases: e.Aliases, Active: true}
			if e.Position != "" {
				p.Position = &e.Position
			}
			if e.Team != "" {
				p.Team = &e.Team
			}
			if e.Active != nil {
				p.Active = *e.Active
			}
			if _, err := db.UpsertPlayer(p); err != nil {
				return err
			}
			imported++
		}
		fmt.Printf("Imported %d players.\n", imported)
		return nil
	},
}

func init() {
	playersCmd.AddCommand(playersImportCmd)
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aggregation API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if _, err := syncSources(db, cfg); err != nil {
			return fmt.Errorf("syncing config sources: %w", err)
		}

		orch := buildOrchestrator(db)
		svc := retrieval.New(db, cache.New(cfg.CacheTTL()), logger, cfg.Retrieval.DefaultLimit)
		srv := server.New(db, orch, svc, logger)

		if cfg.Scheduler.Enabled {
			sched := scheduler.New(db, orch, logger, cfg.SchedulerInterval(), cfg.Ingest.DefaultLimit)
			go sched.Run(context.Background())
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return srv.Serve(port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (0 = config value)")
}

// --- shared helpers ---

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "gridwire.db"))
}

func buildOrchestrator(db *database.DB) *ingest.Orchestrator {
	client := httpx.New(httpx.Options{
		Timeout:    cfg.HTTPTimeout(),
		RetryCount: cfg.HTTP.RetryCount,
		RetryBase:  cfg.RetryBase(),
		UserAgent:  cfg.HTTP.UserAgent,
	})
	return ingest.New(cfg, db, client, logger)
}

// syncSources upserts the config seed list so a fresh deployment has sources
// without manual setup. Returns the number of entries synced.
func syncSources(db *database.DB, cfg *config.Config) (int, error) {
	for _, s := range cfg.Sources {
		src := database.Source{
			Name:         s.Name,
			Provider:     s.Provider,
			Allowed:      s.Allowed,
			Priority:     s.Priority,
			PageBudget:   s.PageBudget,
			LookbackDays: s.LookbackDays,
		}
		if s.Homepage != "" {
			src.HomepageURL = &s.Homepage
		}
		if s.RSSURL != "" {
			src.RSSURL = &s.RSSURL
		}
		if s.SitemapURL != "" {
			src.SitemapURL = &s.SitemapURL
		}
		if s.Adapter != "" {
			src.Adapter = &s.Adapter
		}
		if s.FetchMode != "" {
			src.FetchMode = &s.FetchMode
		}
		if s.Category != "" {
			src.Category = &s.Category
		}
		if s.Selector != "" {
			src.ScrapeSelector = &s.Selector
		}
		if _, err := db.UpsertSource(src); err != nil {
			return 0, err
		}
	}
	return len(cfg.Sources), nil
}
