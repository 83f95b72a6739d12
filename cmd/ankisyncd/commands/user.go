package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ankisyncd/ankisyncd-go/internal/cli/output"
	"github.com/ankisyncd/ankisyncd-go/internal/cli/prompt"
	"github.com/ankisyncd/ankisyncd-go/internal/config"
	"github.com/ankisyncd/ankisyncd-go/internal/usermanager"
)

var userOutputFormat string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage sync server users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a new user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userDelCmd = &cobra.Command{
	Use:   "del <username>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserDel,
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Change a user's password",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserPasswd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known users",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

func init() {
	userCmd.AddCommand(userAddCmd, userDelCmd, userPasswdCmd, userListCmd)
	userListCmd.Flags().StringVar(&userOutputFormat, "output", "table", "output format: table, json, yaml")
}

func openUserManager(cfg *config.Config) (usermanager.UserManager, error) {
	return usermanager.New(cfg.UserManager, cfg.Database.SQLitePath)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username := args[0]

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}
	users, err := openUserManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to open user manager: %w", err)
	}

	password, err := prompt.PasswordWithConfirmation("Password", "Confirm password", 8)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	ctx := context.Background()
	if err := users.CreateUser(ctx, username, password); err != nil {
		return fmt.Errorf("failed to create user %q: %w", username, err)
	}

	fmt.Printf("User %q created\n", username)
	return nil
}

func runUserDel(cmd *cobra.Command, args []string) error {
	username := args[0]

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}
	users, err := openUserManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to open user manager: %w", err)
	}

	if err := users.DeleteUser(context.Background(), username); err != nil {
		return fmt.Errorf("failed to delete user %q: %w", username, err)
	}

	fmt.Printf("User %q deleted\n", username)
	return nil
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	username := args[0]

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}
	users, err := openUserManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to open user manager: %w", err)
	}

	password, err := prompt.PasswordWithConfirmation("New password", "Confirm password", 8)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	if err := users.SetPassword(context.Background(), username, password); err != nil {
		return fmt.Errorf("failed to set password for %q: %w", username, err)
	}

	fmt.Printf("Password updated for %q\n", username)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}
	users, err := openUserManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to open user manager: %w", err)
	}

	format, err := output.ParseFormat(userOutputFormat)
	if err != nil {
		return err
	}

	ctx := context.Background()
	usernames, err := users.ListUsernames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, usernames)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, usernames)
	default:
		table := output.NewUserTable()
		for _, u := range usernames {
			dir, _ := users.UserDir(ctx, u)
			table.Add(u, dir)
		}
		return output.PrintTable(os.Stdout, table)
	}
}
