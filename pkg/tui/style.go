package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// UI styles and layout settings
// Color palette "Blue Moon" from https://gogh-co.github.io/Gogh/
const (
	colorGray     = "#353b52"
	colorWhite    = "#ffffff"
	colorGreen    = "#acfab4"
	colorGreenDim = "#b4c4b4"
	colorRed      = "#e61f44"
	colorRedDim   = "#d06178"
	colorPurple   = "#b9a3eb"
	colorBlue     = "#89ddff"

	tickDuration = time.Duration(time.Second / 20)
	noticeTTL    = 4 * time.Second

	bordersAndPaddingWidth = 4
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color(colorBlue)).
			Background(lipgloss.Color(colorGray)).
			Padding(0, 2).Align(lipgloss.Center)
	subtitleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color(colorBlue))
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGray)).
			Background(lipgloss.Color(colorGreen))
	dangerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(colorGray)).
				Background(lipgloss.Color(colorRed))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWhite))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorBlue))
	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorPurple))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGray))
)

// Function to colorize text based on its status
// 0 (default) - unknown, 1 - green, 2 - red
func TextStatusColorize(text string, status int) string {
	switch status {
	case 1:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreenDim)).Render(text)
	case 2:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorRedDim)).Render(text)
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)).Render(text)
	}
}

// Scroll text that does not fit the column, truncate it otherwise
func (m model) fitText(text string, availableWidth int, scroll bool) string {
	if availableWidth <= 0 || len(text) <= availableWidth {
		return text
	}
	if scroll {
		paddedText := text + "    " + text
		offset := m.marqueeOffset % (len(text) + 4)
		if offset+availableWidth <= len(paddedText) {
			return paddedText[offset : offset+availableWidth]
		}
		return text[:availableWidth]
	}
	if availableWidth > 3 {
		return text[:availableWidth-2] + ".."
	}
	return text[:availableWidth]
}

// Fixed widths (25%, 35%, 40%)
func (m model) columnWidths() (int, int, int) {
	leftWidth := m.width / 4
	middleWidth := (m.width * 35) / 100
	rightWidth := m.width - (leftWidth + middleWidth)
	return leftWidth, middleWidth, rightWidth
}

func pointer(isPoint bool) string {
	if isPoint {
		return "> "
	}
	return strings.Repeat(" ", 2)
}
