package main

import (
	"github.com/charmbracelet/lipgloss"

	"netinspect/internal/analytics"
	"netinspect/pkg/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(18)
	valueStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	cardStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// statusStyle 按事务状态着色
func statusStyle(s model.TransactionStatus) lipgloss.Style {
	switch s {
	case model.StatusCompleted:
		return successStyle
	case model.StatusFailed:
		return errorStyle
	case model.StatusCancelled:
		return warningStyle
	}
	return mutedStyle
}

// ratingStyle 按评级着色
func ratingStyle(r analytics.Rating) lipgloss.Style {
	switch r {
	case analytics.RatingExcellent, analytics.RatingGood:
		return successStyle
	case analytics.RatingAverage:
		return warningStyle
	}
	return errorStyle
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}
