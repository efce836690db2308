package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"taskforge/internal/store"
)

var taskListState string

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect deferred task records",
}

var taskGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one task record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		t, err := st.GetTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(t)
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List task records, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var f store.Filter
		if taskListState != "" {
			f.State = store.State(taskListState)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		tasks, err := st.ListTasks(cmd.Context(), f)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tLOCATION\tSYMBOL\tCREATED")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.State, t.Location, t.Symbol,
				t.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	taskListCmd.Flags().StringVar(&taskListState, "state", "", "filter by state (PENDING, RUNNING, COMPLETED, FAILED)")
	taskCmd.AddCommand(taskGetCmd, taskListCmd)
	rootCmd.AddCommand(taskCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
