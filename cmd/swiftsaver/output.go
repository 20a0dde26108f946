package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/domain/vo"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))             // green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))             // red
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))            // yellow
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))            // cyan
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))           // light grey
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")) // purple
)

func printSuccess(text string) {
	fmt.Println(successStyle.Render("✓ " + text))
}

func printError(text string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+text))
}

func printWarning(text string) {
	fmt.Println(warningStyle.Render("! " + text))
}

func printInfo(text string) {
	fmt.Println(infoStyle.Render(text))
}

func printHeader(text string) {
	fmt.Println(headerStyle.Render(text))
}

func printDetail(label, value string) {
	fmt.Printf("  %s %s\n", detailStyle.Render(label+":"), value)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Align(lipgloss.Center).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// progressLine renders a single-line progress bar for a sample
func progressLine(p domain.DownloadProgress, width int) string {
	filled := p.Progress * width / 100
	bar := strings.Repeat("━", filled) + strings.Repeat(" ", width-filled)

	line := fmt.Sprintf("•%s• %3d%%  %s / %s",
		bar, p.Progress,
		vo.NewFileSize(p.DownloadedSize),
		vo.NewFileSize(p.TotalSize))
	if p.Speed > 0 {
		line += "  " + vo.Rate(p.Speed)
	}
	if p.ETA != nil {
		line += fmt.Sprintf("  eta %ds", *p.ETA)
	}
	return detailStyle.Render(line)
}
