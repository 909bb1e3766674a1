package main

import (
	"fmt"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/manifest"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/output"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Show the persisted snapshot of a directory",
	Long: `Print the manifest last written by init, backup, sync, or watch, without
walking the directory again.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	root, err := resolveDir(args[0])
	if err != nil {
		return err
	}

	store := manifest.New(root)
	if !store.Exists() {
		return fmt.Errorf("no snapshot in %s: run 'dirsnap init %s' first", root, args[0])
	}

	return render(&output.Result{
		Operation: "show",
		Source:    root,
		Manifest:  store.Load(),
	})
}
