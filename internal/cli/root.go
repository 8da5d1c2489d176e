// Package cli implements the deudat command line: the backend server plus a
// small client for working a board from a terminal.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/deudat/deudat/internal/client"
	"github.com/deudat/deudat/internal/infra/sqlite"
)

var (
	flagConfig string
	flagServer string
)

var rootCmd = &cobra.Command{
	Use:   "deudat",
	Short: "deudat - shared consumption board",
	Long: `deudat tracks who took what from a shared stash (coffee, beer, snacks)
and turns the tally into a debts list. The server half exposes the REST API
the mobile board talks to; the client half works a board from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.deudat/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8080", "backend base URL")
}

// stateDir returns ~/.deudat, creating it on first use.
func stateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".deudat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// newClient builds the REST client with the on-disk credential cache.
func newClient() (*client.Client, func(), error) {
	dir, err := stateDir()
	if err != nil {
		return nil, nil, err
	}
	cache, err := sqlite.OpenCredCache(filepath.Join(dir, "credentials.db"))
	if err != nil {
		return nil, nil, err
	}
	return client.New(flagServer, cache), func() { cache.Close() }, nil
}
