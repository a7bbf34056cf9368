package main

import (
	"fmt"
	"strings"

	"netinspect/internal/analytics"
	"netinspect/pkg/api"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var dashboardFilter string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Print the analytics dashboard",
	RunE:  runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().StringVarP(&dashboardFilter, "filter", "f", string(api.FilterLastSession), "lastSession 或 last24Hours")
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	filter, err := dashboardFilterValue(dashboardFilter)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc, _, l, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc, l)

	snap, err := svc.Dashboard(ctx, filter)
	if err != nil {
		return err
	}
	fmt.Println(renderDashboard(snap))
	return nil
}

func dashboardFilterValue(s string) (api.SessionFilter, error) {
	switch api.SessionFilter(s) {
	case "", api.FilterLastSession:
		return api.FilterLastSession, nil
	case api.FilterLast24Hours:
		return api.FilterLast24Hours, nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

func renderDashboard(snap api.Snapshot) string {
	r := snap.Report
	nm := r.Network

	overview := strings.Join([]string{
		titleStyle.Render("Network"),
		row("Requests", fmt.Sprintf("%d (%d pending)", nm.TotalCalls, nm.PendingCalls)),
		row("Success rate", fmt.Sprintf("%.1f%%", nm.SuccessRate)),
		row("Error rate", fmt.Sprintf("%.1f%%", nm.ErrorRate)),
		row("Average", ms(nm.AverageSpeed)),
		row("p50 / p95 / p99", ms(nm.P50Duration)+" / "+ms(nm.P95Duration)+" / "+ms(nm.P99Duration)),
		row("Sent / received", fmt.Sprintf("%d B / %d B", nm.BytesSent, nm.BytesReceived)),
	}, "\n")

	health := strings.Join([]string{
		titleStyle.Render("Health"),
		row("Score", ratingStyle(r.Health.Rating).Render(fmt.Sprintf("%.0f (%s)", r.Health.Score, r.Health.Rating))),
		row("Apdex", fmt.Sprintf("%.2f", r.Apdex.Score)),
		row("Performance", ratingStyle(r.Performance).Render(string(r.Performance))),
		row("Preferences", fmt.Sprintf("%d", r.Preferences.Total)),
		row("Storage", string(snap.StorageMode)),
	}, "\n")

	out := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, cardStyle.Render(overview), " ", cardStyle.Render(health)),
	}
	if len(r.TopEndpoints) > 0 {
		out = append(out, cardStyle.Render(endpointTable("Top endpoints", r.TopEndpoints)))
	}
	if len(r.SlowEndpoints) > 0 {
		out = append(out, cardStyle.Render(endpointTable("Slow endpoints", r.SlowEndpoints)))
	}
	for _, w := range snap.Warnings {
		out = append(out, warningStyle.Render("! "+w))
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}

func endpointTable(title string, eps []analytics.EndpointStats) string {
	lines := []string{titleStyle.Render(title)}
	for _, e := range eps {
		lines = append(lines, fmt.Sprintf("%-7s %-40s %5d  %s  %s",
			e.Method, e.Path, e.Count, ms(e.AverageDuration),
			mutedStyle.Render(fmt.Sprintf("%d errors", e.ErrorCount))))
	}
	return strings.Join(lines, "\n")
}

// ms 秒转毫秒文本
func ms(seconds float64) string {
	return fmt.Sprintf("%.0fms", seconds*1000)
}
