package main

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/smorand/slides-team-hub/internal/auth"
	"github.com/smorand/slides-team-hub/internal/registry"
)

var addUserAdmin bool

var addUserCmd = &cobra.Command{
	Use:   "add-user <username>",
	Short: "Create a local account directly in the registry",
	Long: `add-user creates an account without going through the API, which is
how the first admin account is bootstrapped. The password is read from
the terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}

		reg, err := registry.Open(cfg.Database.Path, slog.Default())
		if err != nil {
			return err
		}
		defer reg.Close()

		role := registry.RoleMember
		if addUserAdmin {
			role = registry.RoleAdmin
		}

		user := &registry.User{
			Username:     args[0],
			PasswordHash: hash,
			Role:         role,
		}
		if err := reg.CreateUser(cmd.Context(), user); err != nil {
			return err
		}

		fmt.Printf("created %s account %q\n", role, user.Username)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash a password for manual account provisioning",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}

		fmt.Println(hash)
		return nil
	},
}

func init() {
	addUserCmd.Flags().BoolVar(&addUserAdmin, "admin", false, "create the account with the admin role")
	rootCmd.AddCommand(addUserCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}

// promptPassword reads a password without echo. Falls back to plain
// stdin when not attached to a terminal (piped input in scripts).
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	if term.IsTerminal(int(syscall.Stdin)) {
		data, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(data), nil
	}

	var password string
	if _, err := fmt.Fscanln(os.Stdin, &password); err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}
