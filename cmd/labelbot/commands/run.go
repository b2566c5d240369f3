package commands

import (
	"fmt"
	"log/slog"
	"time"

	"labelbot/internal/components/chrono"
	"labelbot/internal/components/telemetry"
	"labelbot/internal/compose"
	"labelbot/internal/imagecolor"
	"labelbot/internal/pipeline"
	"labelbot/internal/publish"
	"labelbot/internal/registry"
	"labelbot/internal/twitter"
	"labelbot/internal/workdir"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runFlags struct {
	day        string
	delay      int
	limit      int
	omitSquare bool
	omitGrey   bool
	test       bool
	headed     bool
	skipBroken bool
	mode       string
	workingDir string
	creds      twitter.Credentials
}

func init() {
	flags := runCmd.Flags()
	flags.StringVar(&runFlags.day, "day", "", "Day to retrieve labels for as MM/DD/YYYY. Default is a week ago.")
	flags.IntVar(&runFlags.delay, "delay", 0, "Seconds between posts. Default comes from the config.")
	flags.IntVar(&runFlags.limit, "limit", 0, "Maximum number of posts, 0 is unlimited.")
	flags.BoolVar(&runFlags.omitSquare, "omit-square", false, "Omit square labels like keg tags.")
	flags.BoolVar(&runFlags.omitGrey, "omit-grey", false, "Omit labels that are greyscale.")
	flags.BoolVar(&runFlags.test, "test", false, "Log posts instead of publishing them.")
	flags.BoolVar(&runFlags.headed, "headed", false, "Show the browser window.")
	flags.BoolVar(&runFlags.skipBroken, "skip-broken", false, "Skip labels whose detail page or artwork fails instead of stopping.")
	flags.StringVar(&runFlags.mode, "mode", "", "Registry session, browser or direct. Default comes from the config.")
	flags.StringVar(&runFlags.workingDir, "working-dir", "", "Directory for downloaded files. Default comes from the config.")
	flags.StringVar(&runFlags.creds.ConsumerKey, "consumer-key", "", "Twitter consumer key.")
	flags.StringVar(&runFlags.creds.ConsumerSecret, "consumer-secret", "", "Twitter consumer secret.")
	flags.StringVar(&runFlags.creds.AccessToken, "access-token", "", "Twitter access token.")
	flags.StringVar(&runFlags.creds.AccessTokenSecret, "access-token-secret", "", "Twitter access token secret.")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags layers explicitly set flags over the config.
func applyRunFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("delay") {
		cfg.DelaySecs = runFlags.delay
	}
	if flags.Changed("mode") {
		cfg.Mode = runFlags.mode
	}
	if flags.Changed("working-dir") {
		cfg.WorkingDir = runFlags.workingDir
	}
	if runFlags.creds.ConsumerKey != "" {
		cfg.Twitter.ConsumerKey = runFlags.creds.ConsumerKey
	}
	if runFlags.creds.ConsumerSecret != "" {
		cfg.Twitter.ConsumerSecret = runFlags.creds.ConsumerSecret
	}
	if runFlags.creds.AccessToken != "" {
		cfg.Twitter.AccessToken = runFlags.creds.AccessToken
	}
	if runFlags.creds.AccessTokenSecret != "" {
		cfg.Twitter.AccessTokenSecret = runFlags.creds.AccessTokenSecret
	}
}

var runCmd = &cobra.Command{
	Use:   "run LOW-HIGH... [--day MM/DD/YYYY] [--limit N] [--omit-square] [--omit-grey] [--test]",
	Short: "Queries a day of approvals in the given class/type code ranges and posts them.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ranges, err := parseRanges(args)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(*configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		applyRunFlags(cmd, &cfg)

		clock, err := chrono.NewStandardImpl()
		if err != nil {
			return err
		}
		day, err := resolveDay(clock, runFlags.day)
		if err != nil {
			return err
		}

		tel := telemetry.SlogAPI{}

		var poster publish.Poster
		if !runFlags.test {
			client, err := twitter.NewClient(cfg.Twitter, twitter.Options{}, tel)
			if err != nil {
				return err
			}
			poster = client
		}

		dir := workdir.New(cfg.WorkingDir)
		err = dir.Reset()
		if err != nil {
			return fmt.Errorf("reset working directory: %w", err)
		}

		client, err := newRegistryClient(cfg, tel)
		if err != nil {
			return err
		}
		// artwork is fetched with a client of its own so the imported cookies never mix with the session's
		imageClient, err := newRegistryClient(cfg, tel)
		if err != nil {
			return err
		}

		session, err := openSession(cfg, client, runFlags.headed, tel)
		if err != nil {
			return err
		}

		p := pipeline.New(pipeline.Stages{
			Session:    session,
			Query:      registry.NewQueryService(session, registry.NewClassTypeResolver(client, tel), dir, tel),
			Enricher:   registry.NewDetailEnricher(session, client.Base, tel),
			Fetcher:    registry.NewImageFetcher(imageClient, dir, tel),
			Classifier: imagecolor.NewClassifier(),
			Composer:   compose.Composer{Hashtags: cfg.OriginHashtags},
			Publisher:  publish.NewPublisher(poster, dir, tel),
		}, tel)

		start := time.Now()
		result, err := p.Run(cmd.Context(), pipeline.Options{
			Day:        day,
			Ranges:     ranges,
			Limit:      runFlags.limit,
			Delay:      time.Duration(cfg.DelaySecs) * time.Second,
			OmitSquare: runFlags.omitSquare,
			OmitGrey:   runFlags.omitGrey,
			Test:       runFlags.test,
			SkipBroken: runFlags.skipBroken,
		})
		printResult(chrono.FormatDay(day), result)
		if err != nil {
			return err
		}
		slog.Info("run finished", "day", chrono.FormatDay(day), "seconds", time.Since(start).Seconds())
		return nil
	},
}

func printResult(day string, result pipeline.Result) {
	t := newTable()
	t.SetTitle(day)
	t.AppendHeader(table.Row{"Candidates", "Square", "Grey", "Broken", "Composed", "Published"})
	t.AppendRow(table.Row{
		result.Candidates,
		result.SkippedSquare,
		result.SkippedGrey,
		result.SkippedBroken,
		result.Composed,
		result.Published,
	})
	t.Render()
}
