package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"voicepay/internal/slots"
)

func init() {
	cmd := &cobra.Command{
		Use:   "validate <vpa>",
		Short: "Check a UPI ID and suggest a fix for a mistyped bank handle",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	RootCmd.AddCommand(cmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	id := args[0]
	out := cmd.OutOrStdout()
	if !slots.ValidVPA(id) {
		fmt.Fprintf(out, "%s is not a valid UPI ID\n", id)
		return fmt.Errorf("invalid UPI ID %q", id)
	}
	if suggestion, ok := slots.SuggestHandle(id); ok {
		fmt.Fprintf(out, "%s looks valid, but did you mean %s?\n", id, suggestion)
		return nil
	}
	fmt.Fprintf(out, "%s is a valid UPI ID\n", id)
	return nil
}
