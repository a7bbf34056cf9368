package main

import (
	"encoding/json"
	"fmt"

	"netinspect/internal/preferences"
	"netinspect/pkg/model"

	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "List discovered preferences",
	RunE:  runPrefsList,
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <source> <suite> <key> <json-value>",
	Short: "Write a preference back to its source",
	Example: `  netinspect prefs set userDefaults app theme '"dark"'
  netinspect prefs set keychain api.example.com token '"s3cret"'`,
	Args: cobra.ExactArgs(4),
	RunE: runPrefsSet,
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsSetCmd)
}

func runPrefsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, _, l, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc, l)

	prefs, err := svc.Preferences(ctx)
	if err != nil {
		return err
	}
	if len(prefs) == 0 {
		fmt.Println(mutedStyle.Render("没有偏好"))
		return nil
	}
	for _, p := range prefs {
		raw, _ := json.Marshal(p.Value)
		fmt.Printf("%s %s %s = %s %s\n",
			mutedStyle.Render(fmt.Sprintf("%-12s", p.Source)),
			valueStyle.Render(p.Suite),
			p.Key,
			string(raw),
			mutedStyle.Render("("+string(p.Type)+")"))
	}
	return nil
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	v, err := preferences.ParseValue([]byte(args[3]))
	if err != nil {
		return fmt.Errorf("parse value: %w", err)
	}
	ctx := cmd.Context()
	svc, _, l, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc, l)

	pref := model.Preference{Source: model.PreferenceSource(args[0]), Suite: args[1], Key: args[2]}
	if err := svc.UpdatePreference(ctx, pref, v); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("已更新"))
	return nil
}
