package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/justchokingaround/shikiplay/internal/apperr"
	"github.com/justchokingaround/shikiplay/internal/clipboard"
	"github.com/justchokingaround/shikiplay/internal/config"
	"github.com/justchokingaround/shikiplay/internal/database"
	"github.com/justchokingaround/shikiplay/internal/notice"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
	// Global flags
	cfgFile   string
	logLevel  string
	noColor   bool
	debugMode bool

	// Global config, logger and wired services
	cfg    *config.Config
	logger *slog.Logger
	deps   *app
)

func main() {
	err := rootCmd.Execute()
	shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// shutdown runs after every command, failed ones included, so pending
// preference writes are never lost
func shutdown() {
	if deps != nil {
		if err := deps.close(); err != nil {
			logger.Error("failed to shut down", "error", err)
		}
	}
	if database.DB != nil {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "shikiplay",
	Short: "Watch anime from anime365 with shikimori progress tracking",
	Long: `shikiplay resolves the episode to resume from your shikimori list,
picks a translation the way you picked it last time, and finds the next
season when the current one runs out.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for config init command
		if cmd.Name() == "init" && cmd.Parent().Name() == "config" {
			return nil
		}
		if cmd.Name() == "version" {
			return nil
		}

		if err := config.InitializeDirs(); err != nil {
			return fmt.Errorf("failed to initialize directories: %w", err)
		}

		var err error
		var v *viper.Viper
		cfg, v, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if debugMode {
			cfg.Gateway.Debug = true
			if logLevel == "" {
				cfg.Logging.Level = "debug"
			}
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if noColor {
			cfg.Logging.Color = false
		}

		logger, err = config.InitLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := database.Init(&cfg.Database); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		deps, err = newApp(cfg, logger)
		if err != nil {
			return err
		}

		// Origins can be granted or revoked while a command runs
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			logger.Info("Config file changed", "name", e.Name)
			var next config.Config
			if err := v.Unmarshal(&next); err != nil {
				logger.Error("Failed to reload config", "error", err)
				return
			}
			deps.permissions().Replace(next.Gateway.Origins)
			logger.Info("Permissions reloaded", "origins", len(next.Gateway.Origins))
		})

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/shikiplay/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug mode (verbose HTTP logging)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(nextSeasonCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(noticesCmd)
	rootCmd.AddCommand(historyCmd)
}

// versionCmd displays version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("shikiplay version %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
	},
}

// configCmd handles configuration operations
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			configPath = config.DefaultConfigPath()
		}

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s", configPath)
		}

		if err := config.WriteDefault(configPath); err != nil {
			return fmt.Errorf("failed to save default configuration: %w", err)
		}

		fmt.Printf("Default configuration generated successfully at: %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Catalog API: %s\n", cfg.API.CatalogURL)
		fmt.Printf("Rating API: %s\n", cfg.API.RatingURL)
		fmt.Printf("Title API: %s\n", cfg.API.TitleURL)
		fmt.Printf("Granted origins: %v\n", deps.permissions().List())
		fmt.Printf("Preferred translation: %s\n", cfg.Player.PreferredType)
		fmt.Printf("Database: %s\n", cfg.Database.Path)

		recent, err := deps.store.Recent(cmd.Context(), recentPreferences)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			return nil
		}
		fmt.Println("Recent translation preferences:")
		for _, t := range recent {
			fmt.Printf("  series %d: %s (%s, %dp)\n", t.SeriesID, t.AuthorsSummary, t.Type, t.Height)
		}
		return nil
	},
}

// recentPreferences caps the preference listing of config show
const recentPreferences = 10

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

// playCmd resolves what to watch for a shikimori anime
var playCmd = &cobra.Command{
	Use:   "play <anime-id>",
	Short: "Resolve the episode and translation to watch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		animeID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid anime id %q: %w", args[0], err)
		}
		episode, _ := cmd.Flags().GetInt("episode")
		translationID, _ := cmd.Flags().GetInt("translation")
		open, _ := cmd.Flags().GetBool("open")
		copyURL, _ := cmd.Flags().GetBool("copy")
		watched, _ := cmd.Flags().GetBool("watched")

		ctx := cmd.Context()

		if err := deps.session.LoadAnime(ctx, animeID); err != nil {
			return err
		}
		deps.session.LoadUser(ctx)

		series, err := deps.catalog.FirstSeriesByMyAnimeListID(ctx, animeID)
		if err != nil {
			deps.reporter.Handle(ctx, err, notice.ActionLoadSeries)
			return printNotices(ctx)
		}

		p := deps.player
		if err := p.LoadSeries(ctx, series.ID); err != nil {
			if apperr.Is(err, apperr.KindDataUnavailable) {
				fmt.Println("Nothing to play for this anime")
			}
			return printNotices(ctx)
		}

		if episode > 0 {
			target := -1
			for _, e := range p.Episodes() {
				if n, ok := e.Number(); ok && n == float64(episode) {
					target = e.ID
					break
				}
			}
			if target < 0 {
				return fmt.Errorf("episode %d not found", episode)
			}
			if err := p.SelectEpisode(ctx, target); err != nil {
				return err
			}
		}
		if translationID > 0 {
			if err := p.SelectTranslation(ctx, translationID); err != nil {
				return err
			}
		}

		cur := p.CurrentEpisode()
		if cur == nil {
			fmt.Println("No episode to resume from, pass --episode")
			return printNotices(ctx)
		}
		label := cur.EpisodeFull
		if label == "" {
			label = cur.EpisodeInt
		}
		fmt.Printf("Series: %s\n", p.Series().Title)
		fmt.Printf("Episode: %s\n", label)

		t := p.CurrentTranslation()
		if t == nil {
			fmt.Println("Translation: (none available)")
		} else {
			fmt.Printf("Translation: %s [%s, %dp]\n", t.AuthorsSummary, t.Type, t.Height)
			fmt.Printf("Embed URL: %s\n", t.EmbedURL)
			if open {
				if err := browser.OpenURL(t.EmbedURL); err != nil {
					logger.Warn("failed to open browser", "error", err)
				}
			}
			if copyURL {
				if err := clipboard.NewService(cfg.Player.ClipboardCommand, logger).Copy(ctx, t.EmbedURL); err != nil {
					logger.Warn("failed to copy embed URL", "error", err)
				} else {
					fmt.Println("✓ Embed URL copied to clipboard")
				}
			}
		}

		if watched {
			if n, ok := cur.Number(); ok {
				rate, err := deps.session.MarkAsWatched(ctx, int(n))
				if err != nil {
					return err
				}
				if rate != nil {
					fmt.Printf("Marked as watched: %d episodes (%s)\n", rate.Episodes, rate.Status)
				}
			}
		}

		p.Wait()
		if next := p.NextSeason(); next != nil {
			fmt.Printf("Next season: %s (anime %d, %d episodes", next.Name, next.ID, next.Episodes)
			if next.EpisodeInt > 0 {
				fmt.Printf(", resume at %d", next.EpisodeInt)
			}
			fmt.Println(")")
		}

		return printNotices(ctx)
	},
}

var nextSeasonCmd = &cobra.Command{
	Use:   "next-season <anime-id>",
	Short: "Find the sequel of an anime",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		animeID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid anime id %q: %w", args[0], err)
		}
		ctx := cmd.Context()

		next, err := deps.sequels.ResolveNext(ctx, animeID)
		if err != nil {
			if !apperr.Is(err, apperr.KindDataUnavailable) {
				return err
			}
			fmt.Println("No next season found")
			return printNotices(ctx)
		}

		fmt.Printf("%s (anime %d, %s)\n", next.Name, next.ID, next.Kind)
		fmt.Printf("Series: %d, %d episodes\n", next.SeriesID, next.Episodes)
		if next.EpisodeInt > 0 {
			fmt.Printf("Resume at episode %d\n", next.EpisodeInt)
		}
		return printNotices(ctx)
	},
}

func init() {
	playCmd.Flags().IntP("episode", "e", 0, "episode number to play instead of the resume point")
	playCmd.Flags().IntP("translation", "t", 0, "translation id to use instead of the resolved one")
	playCmd.Flags().BoolP("open", "o", false, "open the embed URL in the browser")
	playCmd.Flags().BoolP("copy", "c", false, "copy the embed URL to the clipboard")
	playCmd.Flags().BoolP("watched", "w", false, "mark the episode as watched on shikimori")
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with shikimori",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the browser",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
		defer cancel()

		cred, err := deps.creds.GetValidCredential(ctx, true)
		if err != nil {
			return err
		}
		if cred == nil {
			fmt.Println("Authentication failed ✗")
			return printNotices(ctx)
		}

		deps.session.LoadUser(ctx)
		if user := deps.session.User(); user != nil {
			fmt.Printf("✓ Logged in as: %s (ID: %d)\n", user.Nickname, user.ID)
		} else {
			fmt.Println("✓ Authenticated")
		}
		return printNotices(ctx)
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cred, valid, err := deps.creds.Status(cmd.Context())
		if err != nil {
			return err
		}
		switch {
		case cred == nil:
			fmt.Println("shikimori: Not authenticated ✗")
		case valid:
			fmt.Printf("shikimori: Authenticated ✓ (expires %s)\n", humanize.Time(cred.ExpiresAt()))
		default:
			fmt.Printf("shikimori: Expired %s, will refresh on next use\n", humanize.Time(cred.ExpiresAt()))
		}
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := deps.creds.Logout(cmd.Context()); err != nil {
			return fmt.Errorf("failed to logout: %w", err)
		}
		fmt.Println("Successfully logged out from shikimori")
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
}

var noticesCmd = &cobra.Command{
	Use:   "notices",
	Short: "Show and clear queued notices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printNotices(cmd.Context())
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently watched anime",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		remove, _ := cmd.Flags().GetInt("delete")

		ctx := cmd.Context()
		if remove > 0 {
			if err := deps.history.Delete(ctx, remove); err != nil {
				return err
			}
		}

		entries, err := deps.history.Recent(ctx, limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No history yet")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-8d %-40s %3d ep  %s\n", e.AnimeID, e.Name, e.Episodes, humanize.Time(e.WatchedAt))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of entries to show")
	historyCmd.Flags().Int("delete", 0, "remove an anime from the history first")
}

// printNotices drains the notice queue to stdout
func printNotices(ctx context.Context) error {
	for {
		n, err := deps.queue.Shift(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to read notices: %w", err)
		}
		if n == nil {
			return nil
		}
		fmt.Println(notice.Render(*n))
	}
}
