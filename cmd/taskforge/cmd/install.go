package cmd

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"taskforge/internal/schedos"
)

// daemonJobName is the scheduler entry that starts taskforged at logon.
const daemonJobName = "TaskforgeDaemon"

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Register the taskforged daemon to start at logon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		target, err := daemonPath()
		if err != nil {
			return err
		}

		sched, err := newScheduler()
		if err != nil {
			return err
		}
		spec := schedos.JobSpec{
			Name:    daemonJobName,
			Target:  target,
			Trigger: schedos.Trigger{Kind: schedos.TriggerLogon},
		}
		if err := sched.EnsureRegistered(cmd.Context(), spec); err != nil {
			return err
		}
		fmt.Printf("registered %s -> %s\n", daemonJobName, target)
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the daemon's logon registration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sched, err := newScheduler()
		if err != nil {
			return err
		}
		if err := sched.Remove(cmd.Context(), daemonJobName); err != nil {
			return err
		}
		fmt.Println("removed", daemonJobName)
		return nil
	},
}

// daemonPath locates the taskforged binary: on PATH first, then next to the
// CLI binary itself.
func daemonPath() (string, error) {
	if p, err := exec.LookPath("taskforged"); err == nil {
		return filepath.Abs(p)
	}
	self, err := exec.LookPath("taskforge")
	if err == nil {
		sibling := filepath.Join(filepath.Dir(self), "taskforged")
		if p, err := exec.LookPath(sibling); err == nil {
			return filepath.Abs(p)
		}
	}
	return "", fmt.Errorf("taskforged binary not found on PATH")
}
