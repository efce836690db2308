// Package cmd implements the taskforge CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskforge/internal/config"
	"taskforge/internal/schedos"
	"taskforge/internal/store"
	logx "taskforge/pkg/logx"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "taskforge",
	Short: "Submit deferred tasks and manage OS-scheduled jobs",
	Long: `taskforge is the command-line surface of the task orchestration engine.

Deferred tasks are references to a function in a source unit plus arguments;
they are stored as PENDING records and picked up by the taskforged worker
loop. Recurring jobs bypass the worker entirely: they are registered with the
operating system's own scheduler (Windows Task Scheduler or cron) and run
with no background process of ours.

Common workflows:

  Submit a deferred task:
    taskforge submit --location jobs/add.py --symbol add --arg 2 --arg 3

  Inspect it:
    taskforge task get <id>

  Register a recurring job with the OS scheduler:
    taskforge schedule add Daily ./report.py --frequency daily --time 08:30

  Register the daemon itself to start on logon:
    taskforge install`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Failures have already been printed; the caller only
// picks the exit code.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err.Error())
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default ./taskforge.yaml)")
}

func loadConfig() (config.Config, error) {
	path := cfgFile
	if path == "" {
		path = "./taskforge.yaml"
	}
	return config.Load(path)
}

func openStore() (store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	storeCfg, err := cfg.StoreConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(storeCfg, logx.Nop())
}

func newScheduler() (schedos.Scheduler, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return schedos.New(cfg.Scheduler.Backend, nil, logx.NewConsole("warn"))
}
