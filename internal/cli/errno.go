package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zqzqsb/faultinj/fault"
)

func newErrnoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "errno CODE...",
		Short: "Translate errno names and numbers",
		Example: "  faultinj errno ENOENT 13",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tNUMBER\tMESSAGE")
			for _, a := range args {
				errno, ok := fault.ParseErrno(a)
				if !ok {
					w.Flush()
					return fmt.Errorf("unknown errno %q", a)
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", fault.ErrnoName(errno), int(errno), errno.Error())
			}
			return w.Flush()
		},
	}
}
