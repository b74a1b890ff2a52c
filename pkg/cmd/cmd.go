// Package cmd 命令行入口.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yeisme/fileparser/pkg/configs"
	"github.com/yeisme/fileparser/pkg/log"
)

var (
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:           configs.AppName,
		Short:         "File parser service: upload, parse and watch files over HTTP and WebSocket",
		Version:       configs.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := configs.InitConfig(configPath); err != nil {
				return err
			}

			cfg := configs.GetConfig()
			log.Init(cfg.Log, cfg.Server.Debug)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")

	registerServeCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
	registerUsersCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
