package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage cache-warming jobs",
}

var jobCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a cache-warming job from files or directories",
	Long: `Create a pending job from the given selection. Directory selections
expand to their recursive file contents as recorded by the catalog,
so index the tree first.

Examples:
  # Warm one directory under the configured root
  tc-manager job create --dir /mnt/filespace/projects/alpha

  # Warm explicit files with a named profile
  tc-manager job create --file a.exr --file b.exr --profile image-sequences`,
	RunE: runJobCreate,
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE:  runJobList,
}

var jobGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a job and its failed items",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobGet,
}

var jobStartCmd = &cobra.Command{
	Use:   "start ID",
	Short: "Confirm a pending job is queued for the workers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, cleanup, err := oneShot(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		if err := mgr.StartJob(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Job %s is queued; workers claim it on their next poll\n", args[0])
		return nil
	},
}

var jobPauseCmd = &cobra.Command{
	Use:   "pause ID",
	Short: "Pause a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, cleanup, err := oneShot(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		if err := mgr.PauseJob(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Job %s paused\n", args[0])
		return nil
	},
}

var jobResumeCmd = &cobra.Command{
	Use:   "resume ID",
	Short: "Resume a paused job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, cleanup, err := oneShot(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		if err := mgr.ResumeJob(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Job %s resumed\n", args[0])
		return nil
	},
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Cancel a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, cleanup, err := oneShot(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		if err := mgr.CancelJob(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Job %s cancelled\n", args[0])
		return nil
	},
}

var jobClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete completed, failed and cancelled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, cleanup, err := oneShot(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		n, err := mgr.ClearCompleted(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("✓ Cleared %d terminal jobs\n", n)
		return nil
	},
}

func init() {
	jobCmd.AddCommand(jobCreateCmd)
	jobCmd.AddCommand(jobListCmd)
	jobCmd.AddCommand(jobGetCmd)
	jobCmd.AddCommand(jobStartCmd)
	jobCmd.AddCommand(jobPauseCmd)
	jobCmd.AddCommand(jobResumeCmd)
	jobCmd.AddCommand(jobCancelCmd)
	jobCmd.AddCommand(jobClearCmd)

	jobCreateCmd.Flags().StringArray("file", nil, "File to warm (repeatable)")
	jobCreateCmd.Flags().StringArray("dir", nil, "Directory to warm recursively (repeatable)")
	jobCreateCmd.Flags().String("profile", "", "Execution profile id or name (default: classified from the selection)")

	jobListCmd.Flags().Int("limit", 50, "Maximum number of jobs to list")
}

func runJobCreate(cmd *cobra.Command, args []string) error {
	files, _ := cmd.Flags().GetStringArray("file")
	dirs, _ := cmd.Flags().GetStringArray("dir")
	profileRef, _ := cmd.Flags().GetString("profile")

	if len(files) == 0 && len(dirs) == 0 {
		return fmt.Errorf("nothing selected: pass --file and/or --dir")
	}

	mgr, _, cleanup, err := oneShot(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	job, err := mgr.CreateCacheJob(cmd.Context(), files, dirs, profileRef)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Job created: %s\n", job.ID)
	fmt.Printf("  Profile: %s\n", job.ProfileID)
	fmt.Printf("  Files: %d\n", job.TotalFiles)
	fmt.Println()
	fmt.Println("Workers claim the job on their next poll.")
	return nil
}

func runJobList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	mgr, _, cleanup, err := oneShot(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	jobs, err := mgr.ListJobs(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs.")
		return nil
	}

	fmt.Printf("%-36s  %-9s  %-16s  %6s  %6s  %6s  %10s\n",
		"ID", "STATUS", "PROFILE", "TOTAL", "DONE", "FAILED", "SIZE")
	for _, j := range jobs {
		fmt.Printf("%-36s  %-9s  %-16s  %6d  %6d  %6d  %10s\n",
			j.ID, j.Status, j.ProfileID, j.TotalFiles, j.CompletedFiles,
			j.FailedFiles, formatBytes(j.CompletedSizeBytes))
	}
	return nil
}

func runJobGet(cmd *cobra.Command, args []string) error {
	mgr, _, cleanup, err := oneShot(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	job, items, err := mgr.GetJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("  Status: %s\n", job.Status)
	fmt.Printf("  Profile: %s\n", job.ProfileID)
	fmt.Printf("  Progress: %d/%d files, %d failed, %s warmed\n",
		job.CompletedFiles, job.TotalFiles, job.FailedFiles,
		formatBytes(job.CompletedSizeBytes))
	fmt.Printf("  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Printf("  Finished: %s\n", job.CompletedAt.Format(time.RFC3339))
	}
	for _, dir := range job.DirectoryPaths {
		fmt.Printf("  Selection: %s\n", dir)
	}

	const maxFailures = 20
	var failed int
	for _, item := range items {
		if item.Status != types.ItemStatusFailed {
			continue
		}
		failed++
		if failed == 1 {
			fmt.Println("\nFailed items:")
		}
		if failed <= maxFailures {
			fmt.Printf("  %s: %s\n", item.FilePath, item.ErrorMessage)
		}
	}
	if failed > maxFailures {
		fmt.Printf("  ... and %d more\n", failed-maxFailures)
	}
	return nil
}
