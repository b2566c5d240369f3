package commands

import (
	"fmt"

	"labelbot/internal/components/telemetry"
	"labelbot/internal/registry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(classTypeCmd)
}

var classTypeCmd = &cobra.Command{
	Use:   "classtype CODE...",
	Short: "Looks up the descriptions of class/type codes.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}

		tel := telemetry.SlogAPI{}
		client, err := newRegistryClient(cfg, tel)
		if err != nil {
			return err
		}
		resolver := registry.NewClassTypeResolver(client, tel)

		t := newTable()
		t.AppendHeader(table.Row{"Code", "Description"})
		for _, code := range args {
			description, err := resolver.Resolve(cmd.Context(), code)
			if err != nil {
				return err
			}
			t.AppendRow(table.Row{code, optional(description)})
		}
		t.Render()
		return nil
	},
}
