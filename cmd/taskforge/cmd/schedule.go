package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"taskforge/internal/schedos"
	"taskforge/internal/store"
)

var (
	schedFrequency string
	schedTime      string
	schedRecord    bool
	schedPrefix    string
	schedLocal     bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring jobs in the OS scheduler",
	Long: `Recurring jobs are handed to the operating system's own scheduler
(Windows Task Scheduler or cron). Once registered they run without any
taskforge process; these subcommands only manage the registrations.`,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <name> <target> [args...]",
	Short: "Register a job with the OS scheduler",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		trigger, err := schedos.ParseTrigger(schedFrequency, schedTime)
		if err != nil {
			return err
		}

		sched, err := newScheduler()
		if err != nil {
			return err
		}
		spec := schedos.JobSpec{
			Name:    args[0],
			Target:  args[1],
			Args:    args[2:],
			Trigger: trigger,
		}
		if err := sched.EnsureRegistered(cmd.Context(), spec); err != nil {
			return err
		}

		if schedRecord {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			rec := store.JobRecord{
				Name:        spec.Name,
				Target:      spec.Target,
				TriggerKind: string(trigger.Kind),
				TriggerAt:   trigger.At,
				CreatedAt:   time.Now(),
			}
			if err := st.PutJobRecord(cmd.Context(), rec); err != nil {
				return fmt.Errorf("job registered but local record failed: %w", err)
			}
		}

		fmt.Printf("registered %s (%s)\n", spec.Name, trigger)
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if schedLocal {
			return listLocalRecords(cmd)
		}

		sched, err := newScheduler()
		if err != nil {
			return err
		}
		jobs, err := sched.List(cmd.Context(), schedPrefix)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTRIGGER\tNEXT RUN\tTARGET")
		for _, j := range jobs {
			next := "-"
			if !j.NextRun.IsZero() {
				next = j.NextRun.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", j.Name, j.Trigger, next, j.Target)
		}
		return w.Flush()
	},
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Trigger an immediate run of a registered job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sched, err := newScheduler()
		if err != nil {
			return err
		}
		return sched.RunNow(cmd.Context(), args[0])
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a job from the OS scheduler",
	Long:  "Remove deletes the registration. Removing a job that does not exist succeeds quietly.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sched, err := newScheduler()
		if err != nil {
			return err
		}
		if err := sched.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}

		// Drop the local record too, if one was kept.
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		return st.DeleteJobRecord(cmd.Context(), args[0])
	},
}

func listLocalRecords(cmd *cobra.Command) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.ListJobRecords(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTRIGGER\tTARGET\tRECORDED")
	for _, r := range recs {
		trig := r.TriggerKind
		if r.TriggerAt != "" {
			trig += "@" + r.TriggerAt
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, trig, r.Target,
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func init() {
	scheduleAddCmd.Flags().StringVar(&schedFrequency, "frequency", "", "trigger kind: once, daily or logon")
	scheduleAddCmd.Flags().StringVar(&schedTime, "time", "", "start time as HH:MM (once and daily)")
	scheduleAddCmd.Flags().BoolVar(&schedRecord, "record", false, "also keep a local registration record")
	_ = scheduleAddCmd.MarkFlagRequired("frequency")

	scheduleListCmd.Flags().StringVar(&schedPrefix, "prefix", "", "filter by name prefix")
	scheduleListCmd.Flags().BoolVar(&schedLocal, "local", false, "list local registration records instead of querying the scheduler")

	scheduleCmd.AddCommand(scheduleAddCmd, scheduleListCmd, scheduleRunCmd, scheduleRemoveCmd)
	rootCmd.AddCommand(scheduleCmd)
}
