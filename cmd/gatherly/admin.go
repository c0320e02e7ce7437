package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/gatherly-dev/gatherly/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and default roles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := server.Open()
		if err != nil {
			return err
		}
		defer app.Close()
		fmt.Println("Database is up to date.")
		return nil
	},
}

var (
	adminUsername string
	adminEmail    string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an active user holding the admin role",
	Long: `Create an active user holding the admin role.

The password is read from the terminal, or from ADMIN_PASSWORD when stdin is not a terminal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword()
		if err != nil {
			return err
		}

		app, err := server.Open()
		if err != nil {
			return err
		}
		defer app.Close()

		user, err := app.Directory.CreateAdmin(cmd.Context(), adminUsername, adminEmail, password)
		if err != nil {
			return err
		}
		fmt.Printf("Created admin %s (%s)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVarP(&adminUsername, "username", "u", "", "Admin username")
	createAdminCmd.Flags().StringVarP(&adminEmail, "email", "e", "", "Admin e-mail (default <username>@gatherly.local)")
	_ = createAdminCmd.MarkFlagRequired("username")
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		if pw := os.Getenv("ADMIN_PASSWORD"); pw != "" {
			return pw, nil
		}
		return "", fmt.Errorf("stdin is not a terminal; set ADMIN_PASSWORD")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprint(os.Stderr, "Password (again): ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return strings.TrimRight(string(first), "\r\n"), nil
}
