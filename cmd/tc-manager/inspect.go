package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect execution profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List execution profiles by priority",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, cleanup, err := oneShot(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		profiles, err := mgr.ListProfiles(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("%-16s  %8s  %7s  %5s  %8s  %-7s  %s\n",
			"NAME", "PRIORITY", "WORKERS", "FILES", "POLL", "DEFAULT", "DESCRIPTION")
		for _, p := range profiles {
			def := ""
			if p.IsDefault {
				def = "✓"
			}
			fmt.Printf("%-16s  %8d  %7d  %5d  %8s  %-7s  %s\n",
				p.Name, p.Priority, p.WorkerCount, p.MaxConcurrentFiles,
				p.PollInterval, def, p.Description)
		}
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls PATH",
	Short: "List a directory from the catalog",
	Long: `List the immediate children of a directory as the catalog last saw
them. Directories whose cached flag may be stale are queued for
background validation by a running daemon.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, cleanup, err := oneShot(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		entries, err := mgr.ListChildren(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Empty directory (or not indexed yet).")
			return nil
		}

		for _, e := range entries {
			kind := "-"
			size := formatBytes(e.Size)
			if e.IsDirectory {
				kind = "d"
				size = "-"
			}
			cached := ""
			if e.Cached {
				cached = "cached"
			}
			fmt.Printf("%s  %10s  %-40s  %s\n", kind, size, e.Name, cached)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate PATH",
	Short: "Recompute a directory's cached flag from its descendants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, cleanup, err := oneShot(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		stats, updated, err := mgr.ValidateDirectoryCache(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Directory: %s\n", args[0])
		fmt.Printf("  Files: %d (%d cached)\n", stats.TotalFiles, stats.CachedFiles)
		fmt.Printf("  Subdirectories: %d (%d cached)\n", stats.Subdirs, stats.CachedSubdirs)
		fmt.Printf("  Should be cached: %v\n", stats.ShouldBeCached)
		if updated {
			fmt.Println("✓ Cached flag updated")
		} else {
			fmt.Println("Cached flag already correct")
		}
		return nil
	},
}

var sizeCmd = &cobra.Command{
	Use:   "size PATH",
	Short: "Show a directory's recursive size",
	Long: `Compute the recursive size of a directory from the catalog. Results
are cached on the directory entry; repeat calls within the TTL return
the stored roll-up without walking the tree again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, cleanup, err := oneShot(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		size, err := mgr.DirectorySize(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Directory: %s\n", args[0])
		fmt.Printf("  Size: %s (%d bytes)\n", formatBytes(size.SizeBytes), size.SizeBytes)
		fmt.Printf("  Files: %d\n", size.FileCount)
		fmt.Printf("  Subdirectories: %d\n", size.DirCount)
		fmt.Printf("  Calculated: %s\n", size.CalculatedAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileListCmd)
}
