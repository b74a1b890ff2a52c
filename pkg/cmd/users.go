package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yeisme/fileparser/pkg/app"
	"github.com/yeisme/fileparser/pkg/configs"
)

var (
	usersCmd = &cobra.Command{
		Use:   "users",
		Short: "User management commands",
	}

	promoteCmd = &cobra.Command{
		Use:   "promote <username>",
		Short: "grant admin privileges to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				u, err := a.Auth().Promote(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "user %s (id %d) is now an admin\n", u.Username, u.ID)

				return nil
			})
		},
	}

	usersListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list registered users",
		Aliases: []string{"ls", "l"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				users, total, err := a.Auth().ListUsers(cmd.Context(), usersLimit, 0)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tUSERNAME\tACTIVE\tADMIN\tCREATED")

				for _, u := range users {
					fmt.Fprintf(w, "%d\t%s\t%t\t%t\t%s\n", u.ID, u.Username, u.IsActive, u.IsAdmin, u.CreatedAt.Format(time.RFC3339))
				}

				if err := w.Flush(); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d users\n", len(users), total)

				return nil
			})
		},
	}

	usersLimit int
)

// withApp 构建但不启动服务，执行 fn 后释放资源.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, configs.GetConfig())
	if err != nil {
		return err
	}

	runErr := fn(a)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Close(closeCtx); err != nil && runErr == nil {
		return err
	}

	return runErr
}

// registerUsersCommands 注册用户管理命令.
func registerUsersCommands() {
	usersListCmd.Flags().IntVar(&usersLimit, "limit", 100, "max users to print")

	usersCmd.AddCommand(promoteCmd)
	usersCmd.AddCommand(usersListCmd)
	rootCmd.AddCommand(usersCmd)
}
