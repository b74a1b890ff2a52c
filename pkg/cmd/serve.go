package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yeisme/fileparser/pkg/app"
	"github.com/yeisme/fileparser/pkg/configs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	a, err := app.New(ctx, configs.GetConfig())
	if err != nil {
		return err
	}

	return a.Run(ctx)
}

func registerServeCommands() {
	rootCmd.AddCommand(serveCmd)
}
