package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tanpawarit/remibot/agent/catalog"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load organizations, sites, plots, destinations and phones from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := catalog.LoadSeed(args[0])
			if err != nil {
				return err
			}
			s, err := loadSettings()
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), s)
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := seed.Apply(cmd.Context(), catalog.NewPostgresStore(db))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d organizations, %d sites, %d plots, %d destinations, %d new phones (%d already present)\n",
				stats.Organizations, stats.Sites, stats.Plots, stats.Destinations, stats.PhonesAdded, stats.PhonesSeen)
			return nil
		},
	}
}
