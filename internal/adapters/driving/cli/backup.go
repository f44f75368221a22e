package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	backupRestorePath string
	backupList        bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot or restore the document stores",
	Long: `Takes a consistent snapshot of the metadata store, the vector store, and
the library tree. Snapshots carry a completion marker; restore refuses a
snapshot without one, so an interrupted backup can never clobber live
state.`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().StringVar(&backupRestorePath, "restore", "", "restore from the given snapshot directory")
	backupCmd.Flags().BoolVar(&backupList, "list", false, "list existing snapshots")
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(Options{}); err != nil {
		return err
	}
	ctx := cmd.Context()

	switch {
	case backupList:
		snapshots, err := services.Backup.ListSnapshots(ctx)
		if err != nil {
			return fmt.Errorf("listing snapshots: %w", err)
		}
		if len(snapshots) == 0 {
			cmd.Println("No snapshots found.")
			return nil
		}
		for _, snap := range snapshots {
			state := "complete"
			if !snap.Complete {
				state = "INCOMPLETE"
			}
			cmd.Printf("  %s  %s  %d documents, %d vectors  [%s]\n",
				snap.Name, snap.CreatedAt.Format(time.RFC3339), snap.Documents, snap.Vectors, state)
		}
		return nil

	case backupRestorePath != "":
		if err := services.Backup.Restore(ctx, backupRestorePath); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		cmd.Printf("Restored from %s\n", backupRestorePath)
		return nil

	default:
		snap, err := services.Backup.Backup(ctx)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		cmd.Printf("Snapshot written to %s (%d documents, %d vectors)\n",
			snap.Path, snap.Documents, snap.Vectors)
		return nil
	}
}
