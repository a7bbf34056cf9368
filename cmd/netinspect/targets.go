package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List DevTools pages that serve --cdp can record",
	RunE:  runTargets,
}

func init() {
	rootCmd.AddCommand(targetsCmd)
}

func runTargets(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, _, l, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc, l)

	mon, err := svc.NewMonitor("")
	if err != nil {
		return err
	}
	targets, err := mon.Targets(ctx)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Println(mutedStyle.Render("没有可用页面"))
		return nil
	}
	for _, t := range targets {
		fmt.Printf("%s  %s\n  %s\n", valueStyle.Render(t.ID), t.Title, mutedStyle.Render(t.URL))
	}
	return nil
}
