/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/todoapi/apiserver/config"
	"github.com/todoapi/apiserver/internal/db"
	"github.com/todoapi/apiserver/internal/services"
	"github.com/todoapi/apiserver/internal/storage"
	"github.com/todoapi/apiserver/internal/store"
)

var exportKey string

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Upload a JSON snapshot of all users and their todo items",
	Long: `Reads every user with its todo items and uploads the result as one JSON
document to the configured object store (STORAGE_BACKEND=minio|gcs).

	todoapi export --key exports/nightly.json
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		ctx := cmd.Context()

		sqlDB, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		gormDB, err := db.OpenGorm(sqlDB, cfg)
		if err != nil {
			return err
		}

		objects, err := storage.NewFromConfig(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer objects.Close()

		users := services.NewUserService(store.NewUserRepository(gormDB), nil)
		key, err := services.NewExportService(users, objects).Export(ctx, exportKey)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported snapshot to %s/%s\n", objects.Bucket(), key)
		return nil
	},
}

var exportCatCmd = &cobra.Command{
	Use:   "cat KEY",
	Short: "Print a previously exported snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		objects, err := storage.NewFromConfig(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		defer objects.Close()

		rc, err := objects.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("fetch %s: %w", args[0], err)
		}
		defer rc.Close()

		_, err = io.Copy(cmd.OutOrStdout(), rc)
		return err
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportCatCmd)

	exportCmd.Flags().StringVar(&exportKey, "key", "", "object key (default exports/users-<timestamp>.json)")
}
