package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kinesis/internal/morphology"
	kinesisapi "kinesis/pkg/kinesis"
)

func newValidateCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <morphology.json>",
		Short: "Check a morphology document without running anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := morphology.ReadDocument(args[0])
			if err != nil {
				return err
			}
			if err := kinesisapi.ValidateDocument(doc); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			dofs := 0
			for _, j := range doc.Joints {
				dofs += j.Kind.DOFs()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d joints, %d DOFs, %d loops)\n",
				doc.Name, len(doc.Joints), dofs, len(doc.Loops))
			return nil
		},
	}
}

func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, sc := range kinesisapi.Scenarios() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %4d ticks  %s\n",
					sc.Name, sc.Ticks, sc.Description)
			}
			return nil
		},
	}
}
