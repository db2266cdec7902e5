package cmd

import (
	"os"

	"github.com/spf13/cobra"
	configx "github.com/tanpawarit/remibot/pkg/config"
	logx "github.com/tanpawarit/remibot/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "remibot",
		Short:         "RemiBOT - dispatch receipts over WhatsApp",
		Long:          "RemiBOT turns WhatsApp conversations into validated dispatch receipts for agricultural trucking.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configx.SetEnvFile(envFile)
			logCfg, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return err
			}
			logx.Init(*logCfg)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file (defaults to ./.env when present)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newPhoneCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newChatCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
