package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmcp718/tc-manager-sub000/pkg/events"
	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage index sessions",
}

var indexStartCmd = &cobra.Command{
	Use:   "start [PATH]",
	Short: "Index the filespace into the catalog",
	Long: `Walk PATH (default: the configured root) and reconcile what is found
into the catalog. The traversal runs in this process until it
completes; Ctrl+C requests a graceful stop that keeps every batch
already flushed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndexStart,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active or most recent index session",
	RunE:  runIndexStatus,
}

func init() {
	indexCmd.AddCommand(indexStartCmd)
	indexCmd.AddCommand(indexStatusCmd)
}

func runIndexStart(cmd *cobra.Command, args []string) error {
	mgr, cfg, cleanup, err := oneShot(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	root := cfg.RootPath
	if len(args) == 1 {
		root = args[0]
	}

	sub := mgr.Subscribe()
	defer mgr.Unsubscribe(sub)

	sessID, err := mgr.StartIndex(cmd.Context(), root)
	if err != nil {
		return err
	}
	fmt.Printf("Index session %s\n", sessID)
	fmt.Printf("  Walking %s\n", root)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case ev := <-sub:
			switch e := ev.(type) {
			case *events.IndexProgress:
				fmt.Printf("  %d entries, at %s\n", e.ProcessedFiles, e.CurrentPath)
			case *events.IndexComplete:
				if e.Stopped {
					fmt.Printf("✓ Index stopped after %d entries\n", e.ProcessedFiles)
				} else {
					fmt.Printf("✓ Index complete: %d entries\n", e.ProcessedFiles)
				}
				return nil
			case *events.IndexError:
				return fmt.Errorf("index session failed: %s", e.Message)
			}
		case <-sigCh:
			fmt.Println("\nStopping index...")
			if err := mgr.StopIndex(); err != nil {
				return err
			}
		}
	}
}

func runIndexStatus(cmd *cobra.Command, args []string) error {
	mgr, _, cleanup, err := oneShot(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	sess, err := mgr.IndexStatus(cmd.Context())
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Println("No index sessions recorded.")
		return nil
	}

	fmt.Printf("Session: %s\n", sess.ID)
	fmt.Printf("  Root: %s\n", sess.RootPath)
	fmt.Printf("  Status: %s\n", sess.Status)
	fmt.Printf("  Processed: %d entries\n", sess.ProcessedFiles)
	if sess.Status == types.IndexStatusRunning && sess.CurrentPath != "" {
		fmt.Printf("  At: %s\n", sess.CurrentPath)
	}
	fmt.Printf("  Started: %s\n", sess.StartedAt.Format(time.RFC3339))
	if sess.CompletedAt != nil {
		fmt.Printf("  Finished: %s\n", sess.CompletedAt.Format(time.RFC3339))
	}
	if sess.ErrorMessage != "" {
		fmt.Printf("  Error: %s\n", sess.ErrorMessage)
	}
	return nil
}
