package commands

import (
	"fmt"

	"labelbot/internal/components/chrono"
	"labelbot/internal/components/telemetry"
	"labelbot/internal/registry"
	"labelbot/internal/workdir"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var queryFlags struct {
	day    string
	headed bool
	mode   string
}

func init() {
	queryCmd.Flags().StringVar(&queryFlags.day, "day", "", "Day to retrieve labels for as MM/DD/YYYY. Default is a week ago.")
	queryCmd.Flags().BoolVar(&queryFlags.headed, "headed", false, "Show the browser window.")
	queryCmd.Flags().StringVar(&queryFlags.mode, "mode", "", "Registry session, browser or direct. Default comes from the config.")
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query LOW-HIGH... [--day MM/DD/YYYY]",
	Short: "Lists the approvals of a day without enriching or posting them.",
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
		if queryFlags.mode != "" {
			cfg.Mode = queryFlags.mode
		}

		clock, err := chrono.NewStandardImpl()
		if err != nil {
			return err
		}
		day, err := resolveDay(clock, queryFlags.day)
		if err != nil {
			return err
		}

		tel := telemetry.SlogAPI{}
		dir := workdir.New(cfg.WorkingDir)
		if err := dir.Reset(); err != nil {
			return err
		}

		client, err := newRegistryClient(cfg, tel)
		if err != nil {
			return err
		}
		session, err := openSession(cfg, client, queryFlags.headed, tel)
		if err != nil {
			return err
		}
		defer session.Close()

		service := registry.NewQueryService(session, registry.NewClassTypeResolver(client, tel), dir, tel)
		records, err := service.QueryAll(cmd.Context(), day, day, ranges)
		if err != nil {
			return err
		}

		t := newTable()
		t.SetTitle(chrono.FormatDay(day))
		t.AppendHeader(table.Row{"TTB ID", "Brand", "Fanciful", "Class/Type", "Origin"})
		for _, r := range records {
			t.AppendRow(table.Row{
				r.ID,
				r.BrandName,
				r.FancifulName,
				fmt.Sprintf("%s (%s)", optional(r.ClassType), r.ClassTypeCode),
				r.Origin,
			})
		}
		t.AppendFooter(table.Row{"", "", "", "Total", len(records)})
		t.Render()
		return nil
	},
}
