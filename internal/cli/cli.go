// ============================================================================
// atcoder-archive CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra-based command line interface for the archive
//
// Command Structure:
//   atcoder-archive                # Root command
//   ├── init [dir]                 # Create archive directory and settings
//   │   └── --username, -u        # Skip the interactive prompt
//   ├── sync                       # Archive new submissions once
//   │   └── --metrics-file        # Write Prometheus textfile after the run
//   ├── watch                      # Sync periodically until interrupted
//   │   ├── --interval            # Time between runs
//   │   └── --metrics-port        # Serve /metrics (0 disables)
//   ├── status                     # Show settings, cursor and entry counts
//   ├── --dir, -C                  # Archive directory (default ".")
//   ├── --config, -c               # Settings file (default <dir>/settings.yaml)
//   └── --verbose, -v              # Debug logging
//
// Configuration Management:
//   Settings live in a YAML file inside the archive directory and are
//   committed as the first entry by `init`. Environment variables
//   (ATCODER_ARCHIVE_USERNAME, ATCODER_ARCHIVE_RESULTS,
//   ATCODER_ARCHIVE_LANGUAGES) override the file.
//
// sync Command:
//   1. Load settings and open the git history
//   2. Build AtCoder client, archive writer and controller
//   3. Run one Sync, print the archived count
//   4. Write metrics textfile (if requested)
//
//   Examples:
//     atcoder-archive sync
//     atcoder-archive -C ~/atcoder sync --metrics-file /var/lib/node_exporter/atcoder.prom
//
// Signal Handling:
//   sync and watch capture SIGINT/SIGTERM. The in-flight submission is
//   abandoned; everything archived before it stays archived and the next
//   run resumes after it.
//
// ============================================================================

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChuLiYu/atcoder-archive/internal/archive"
	"github.com/ChuLiYu/atcoder-archive/internal/atcoder"
	"github.com/ChuLiYu/atcoder-archive/internal/controller"
	"github.com/ChuLiYu/atcoder-archive/internal/metrics"
	"github.com/ChuLiYu/atcoder-archive/internal/settings"
	"github.com/ChuLiYu/atcoder-archive/internal/storage/history"
)

// Version is overridden at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "dev"

var (
	archiveDir string
	configFile string
	verbose    bool

	// 測試用：指向假的 API 伺服器
	apiBase  string
	siteBase string
)

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "atcoder-archive",
		Short: "Archive your AtCoder submissions into a git repository",
		Long: `atcoder-archive keeps a git repository in sync with your AtCoder submissions:
- one commit per submission, dated at submission time
- resumable: progress is recovered from the git history itself
- filters by result and language`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), verbose)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&archiveDir, "dir", "C", ".", "archive directory")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "settings file path (default <dir>/settings.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&apiBase, "api-base", atcoder.DefaultAPIBase, "submission listing API base URL")
	rootCmd.PersistentFlags().StringVar(&siteBase, "site-base", atcoder.DefaultSiteBase, "AtCoder site base URL")
	_ = rootCmd.PersistentFlags().MarkHidden("api-base")
	_ = rootCmd.PersistentFlags().MarkHidden("site-base")

	rootCmd.AddCommand(buildInitCommand())
	rootCmd.AddCommand(buildSyncCommand())
	rootCmd.AddCommand(buildWatchCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func setupLogging(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// settingsPath 解析設定檔路徑；--config 優先
func settingsPath(dir string) string {
	if configFile != "" {
		return configFile
	}
	return filepath.Join(dir, settings.DefaultFileName)
}

// ============================================================================
// init
// ============================================================================

func buildInitCommand() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create an archive directory",
		Long:  "Create the archive directory, write the settings file and initialize the git history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := archiveDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, dir, username)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "AtCoder username (prompted when omitted)")
	return cmd
}

func runInit(cmd *cobra.Command, dir, username string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	mgr := settings.NewManager(settingsPath(dir))
	if mgr.Exists() {
		return fmt.Errorf("settings already exist at %s", mgr.GetPath())
	}

	if username == "" {
		var err error
		username, err = promptUsername(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
	}

	s := settings.Settings{Username: username}
	if err := s.Validate(); err != nil {
		return err
	}

	// 1. 寫入設定檔
	if err := mgr.Write(s); err != nil {
		return err
	}

	// 2. 建立 git 儲存庫
	store, err := history.Init(dir)
	if err != nil {
		return err
	}
	store.SetAuthor(s.Author)

	// 3. 設定檔位於歸檔目錄內時，作為第一筆 commit
	if rel, ok := relativeTo(dir, mgr.GetPath()); ok {
		if _, err := store.Commit([]string{rel}, "Initial commit", time.Now()); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized archive for %s in %s\n", s.Username, dir)
	return nil
}

func promptUsername(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "AtCoder username: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// relativeTo 回傳 target 相對於 dir 的 slash 路徑；不在 dir 內時回傳 false
func relativeTo(dir, target string) (string, bool) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absDir, absTarget)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ============================================================================
// sync / watch
// ============================================================================

func buildSyncCommand() *cobra.Command {
	var metricsFile string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Archive new submissions",
		Long:  "Recover the cursor from the git history, list newer submissions and archive them oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, metricsFile)
		},
	}

	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the run")
	return cmd
}

func runSync(cmd *cobra.Command, metricsFile string) error {
	collector := metrics.NewCollector()
	ctrl, err := openController(collector, 0)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, syncErr := ctrl.Sync(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "Archived %d submission(s)\n", n)

	if metricsFile != "" {
		if err := metrics.WriteTextfile(metricsFile); err != nil {
			slog.Error("Failed to write metrics", "path", metricsFile, "error", err)
		}
	}
	return syncErr
}

func buildWatchCommand() *cobra.Command {
	var interval time.Duration
	var metricsPort int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync periodically until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, interval, metricsPort)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 30*time.Minute, "time between sync runs")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")
	return cmd
}

func runWatch(cmd *cobra.Command, interval time.Duration, metricsPort int) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}

	collector := metrics.NewCollector()
	ctrl, err := openController(collector, interval)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsPort > 0 {
		srv := metrics.StartServer(metricsPort, func(err error) {
			slog.Error("Metrics server error", "error", err)
		})
		slog.Info("Serving metrics", "addr", srv.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	slog.Info("Received shutdown signal, stopping gracefully")
	ctrl.Stop()
	return nil
}

// openController 載入設定、開啟歷史並組裝同步所需元件
func openController(collector *metrics.Collector, interval time.Duration) (*controller.Controller, error) {
	s, err := settings.NewManager(settingsPath(archiveDir)).Load()
	if err != nil {
		return nil, err
	}

	store, err := history.Open(archiveDir)
	if err != nil {
		return nil, err
	}
	store.SetAuthor(s.Author)

	client := atcoder.NewClient(
		atcoder.WithTimeout(s.HTTPTimeout),
		atcoder.WithAPIBase(apiBase),
		atcoder.WithSiteBase(siteBase),
	)
	writer := archive.NewWriter(store, client, archive.WithMetrics(collector))

	return controller.NewController(controller.Config{
		Username:    s.Username,
		Filter:      s.Filter,
		Pace:        s.Pace,
		StopOnError: s.StopOnError,
		Interval:    interval,
	}, client, writer, store, controller.WithMetrics(collector))
}

// ============================================================================
// status
// ============================================================================

func buildStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show archive status",
		Long:  "Display settings, the recovered cursor and entry counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(cmd)
		},
	}
	return cmd
}

func showStatus(cmd *cobra.Command) error {
	mgr := settings.NewManager(settingsPath(archiveDir))
	s, err := mgr.Load()
	if err != nil {
		return err
	}

	store, err := history.Open(archiveDir)
	if err != nil {
		return err
	}

	sum, err := archive.Summarize(cmd.Context(), store)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  ├─ Settings File:  %s\n", mgr.GetPath())
	fmt.Fprintf(out, "  ├─ Username:       %s\n", s.Username)
	fmt.Fprintf(out, "  ├─ Results:        %s\n", listOrAll(s.Filter.Results))
	fmt.Fprintf(out, "  ├─ Languages:      %s\n", listOrAll(s.Filter.Languages))
	fmt.Fprintf(out, "  └─ Pace:           %s\n", s.Pace)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "History:")
	fmt.Fprintf(out, "  ├─ Archived:       %d\n", sum.Archived)
	fmt.Fprintf(out, "  ├─ Other Commits:  %d\n", sum.Foreign)
	if sum.Newest != nil {
		fmt.Fprintf(out, "  └─ Cursor:         %s (%s %d)\n",
			sum.Newest.CreatedAt().Format(time.RFC3339), sum.Newest.ContestID, sum.Newest.ID)
	} else {
		fmt.Fprintln(out, "  └─ Cursor:         none (next sync starts from the beginning)")
	}
	return nil
}

func listOrAll(values []string) string {
	if len(values) == 0 {
		return "(all)"
	}
	return strings.Join(values, ", ")
}
