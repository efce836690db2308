package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"taskforge/internal/value"
)

var (
	submitLocation string
	submitSymbol   string
	submitArgs     []string
	submitKwargs   []string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a deferred task for the worker loop",
	Long: `Submit stores a new PENDING task record. Argument values are parsed as
JSON when possible ("2" becomes the number 2, '"2"' the string "2"); anything
that is not valid JSON is taken as a plain string.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		args, err := buildArgs(submitArgs, submitKwargs)
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		id, err := st.CreateTask(cmd.Context(), submitLocation, submitSymbol, args)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitLocation, "location", "", "source unit containing the target function")
	submitCmd.Flags().StringVar(&submitSymbol, "symbol", "", "function name within the source unit")
	submitCmd.Flags().StringArrayVar(&submitArgs, "arg", nil, "positional argument (repeatable)")
	submitCmd.Flags().StringArrayVar(&submitKwargs, "kwarg", nil, "named argument as key=value (repeatable)")
	_ = submitCmd.MarkFlagRequired("location")
	_ = submitCmd.MarkFlagRequired("symbol")
	rootCmd.AddCommand(submitCmd)
}

func buildArgs(positional, named []string) (value.Args, error) {
	var out value.Args
	for _, raw := range positional {
		out.Positional = append(out.Positional, parseValue(raw))
	}
	for _, raw := range named {
		k, v, ok := strings.Cut(raw, "=")
		if !ok || k == "" {
			return value.Args{}, fmt.Errorf("invalid --kwarg %q (want key=value)", raw)
		}
		out.Named = append(out.Named, value.Entry{Key: k, Value: parseValue(v)})
	}
	return out, nil
}

func parseValue(raw string) value.Value {
	if v, err := value.FromJSON([]byte(raw)); err == nil {
		return v
	}
	return value.String(raw)
}
