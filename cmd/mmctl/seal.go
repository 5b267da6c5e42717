package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"moneymoved/internal/prompt"
	"moneymoved/internal/services/storage"
)

// dataDirectory resolves the data directory without requiring a catalogue,
// so a directory can be sealed before it is fully configured.
func dataDirectory() string {
	if dataDir != "" {
		return dataDir
	}
	if dir := os.Getenv("MM_DATA_DIR"); dir != "" {
		return dir
	}
	return "data"
}

var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Encrypt the dataset sources with a passphrase",
	Long: `Encrypts every CSV and SQLite file in the data directory with an age
scrypt passphrase. The server and mmctl then need MM_DATA_PASSWORD, or a
terminal prompt, to read them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(dataDirectory())
		if err != nil {
			return err
		}
		pass := os.Getenv("MM_DATA_PASSWORD")
		if pass == "" {
			if pass, err = prompt.NewPassphrase(); err != nil {
				return err
			}
		}
		if err := store.Seal(pass); err != nil {
			return err
		}
		logger.Info("data directory sealed", zap.String("dir", store.BaseDir()))
		fmt.Fprintf(cmd.OutOrStdout(), "sealed %s\n", store.BaseDir())
		return nil
	},
}

var unsealCmd = &cobra.Command{
	Use:   "unseal",
	Short: "Decrypt the dataset sources permanently",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(dataDirectory())
		if err != nil {
			return err
		}
		pass, err := prompt.Resolve(os.Getenv("MM_DATA_PASSWORD"))
		if err != nil {
			return err
		}
		if err := store.Unseal(pass); err != nil {
			return err
		}
		logger.Info("data directory unsealed", zap.String("dir", store.BaseDir()))
		fmt.Fprintf(cmd.OutOrStdout(), "unsealed %s\n", store.BaseDir())
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the data directory is sealed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(dataDirectory())
		if err != nil {
			return err
		}
		state := "plain"
		if store.IsSealed() {
			state = "sealed"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", store.BaseDir(), state)
		return nil
	},
}
