package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/internal/app"
	"github.com/yourusername/albumgrab-go/internal/domain"
	"github.com/yourusername/albumgrab-go/internal/httpx"
	"github.com/yourusername/albumgrab-go/internal/robots"
	"github.com/yourusername/albumgrab-go/internal/site"
	"github.com/yourusername/albumgrab-go/pkg/logger"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "albumgrab",
		Short: "AlbumGrab CLI - Album resource downloader",
		Long:  `A command-line tool for downloading the resources referenced by album pages on content-hosting sites.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	getCmd.Flags().StringP("output", "o", "", "Output directory")
	getCmd.Flags().StringP("file", "f", "", "File with album URLs, one per line")
	getCmd.Flags().String("proxy", "", "Proxy URL (http, https or socks5)")
	getCmd.Flags().Duration("min-delay", 0, "Minimum delay between requests")
	getCmd.Flags().Duration("max-delay", 0, "Maximum delay between requests")
	getCmd.Flags().BoolP("concurrent", "c", false, "Download resources concurrently")
	getCmd.Flags().Int("workers", 0, "Initial worker count in concurrent mode")
	getCmd.Flags().Int("max-workers", 0, "Worker count ceiling in concurrent mode")
	getCmd.Flags().Int("retries", -1, "Retries per resource on transient failures")
	getCmd.Flags().Bool("no-robots", false, "Skip robots.txt checks")
	getCmd.Flags().BoolP("verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(versionCmd)
}

var getCmd = &cobra.Command{
	Use:   "get [urls...]",
	Short: "Download every resource referenced by the given album URLs",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)

		urls := args
		if listPath, _ := cmd.Flags().GetString("file"); listPath != "" {
			fromFile, err := readURLFile(listPath)
			if err != nil {
				return err
			}
			urls = append(urls, fromFile...)
		}
		if len(urls) == 0 {
			return fmt.Errorf("no album URLs given; pass them as arguments or with --file")
		}

		log, err := logger.New(logger.Config{
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
			OutputPath: cfg.Logging.OutputPath,
		})
		if err != nil {
			return err
		}
		defer log.Sync()

		client, err := httpx.New(httpx.Options{
			Proxy:      cfg.HTTP.Proxy,
			Timeout:    cfg.HTTP.Timeout,
			UserAgents: cfg.HTTP.UserAgents,
		})
		if err != nil {
			return err
		}

		registry := site.NewRegistry(client, cfg.Download.ChunkSize, log)
		policy := robots.New(client, cfg.Robots.Respect, log)
		orch := app.NewOrchestrator(cfg, client, registry, policy, log)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var total domain.TaskStats
		failures := 0
		for _, url := range urls {
			if ctx.Err() != nil {
				break
			}
			stats, err := orch.RunAlbum(ctx, domain.NewAlbumTask(url, cfg.Output.Dir))
			total.Add(stats)
			if err != nil {
				failures++
				fmt.Fprintf(os.Stderr, "[-] %s: %v\n", url, err)
				continue
			}
			fmt.Printf("[+] %s: %d downloaded, %d skipped, %d failed\n",
				url, stats.Downloaded, stats.SkippedDone+stats.SkippedFailed, stats.Failed)
		}

		printSummary(total)

		if ctx.Err() != nil {
			log.Warn("interrupted", zap.Error(ctx.Err()))
			return fmt.Errorf("interrupted")
		}
		if failures > 0 {
			return fmt.Errorf("%d album(s) failed", failures)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("albumgrab version 1.0.0")
	},
}

// applyFlags overlays explicitly-set flags on the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *domain.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Dir, _ = flags.GetString("output")
	}
	if flags.Changed("proxy") {
		cfg.HTTP.Proxy, _ = flags.GetString("proxy")
	}
	if flags.Changed("min-delay") {
		cfg.Rate.MinDelay, _ = flags.GetDuration("min-delay")
	}
	if flags.Changed("max-delay") {
		cfg.Rate.MaxDelay, _ = flags.GetDuration("max-delay")
	}
	if flags.Changed("concurrent") {
		cfg.Download.Concurrent, _ = flags.GetBool("concurrent")
	}
	if flags.Changed("workers") {
		cfg.Download.MinWorkers, _ = flags.GetInt("workers")
		cfg.Download.Concurrent = true
	}
	if flags.Changed("max-workers") {
		cfg.Download.MaxWorkers, _ = flags.GetInt("max-workers")
		cfg.Download.Concurrent = true
	}
	if flags.Changed("retries") {
		cfg.Download.MaxRetries, _ = flags.GetInt("retries")
	}
	if noRobots, _ := flags.GetBool("no-robots"); noRobots {
		cfg.Robots.Respect = false
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}
	if cfg.Download.MaxWorkers < cfg.Download.MinWorkers {
		cfg.Download.MaxWorkers = cfg.Download.MinWorkers
	}
}

// readURLFile loads album URLs from a text file, one per line. Blank lines
// and #-comments are skipped.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, sc.Err()
}

func printSummary(total domain.TaskStats) {
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Found:       %d\n", total.Found)
	fmt.Printf("  Downloaded:  %d\n", total.Downloaded)
	fmt.Printf("  Skipped:     %d (done) + %d (failed before)\n", total.SkippedDone, total.SkippedFailed)
	fmt.Printf("  Failed:      %d\n", total.Failed)
	fmt.Printf("  Bytes:       %d\n", total.Bytes)
	fmt.Printf("  Elapsed:     %s\n", total.Elapsed.Round(time.Millisecond))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
