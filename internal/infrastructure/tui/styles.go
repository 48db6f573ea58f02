package tui

import "github.com/charmbracelet/lipgloss"

var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("240")).
	Padding(0, 1)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	PaddingLeft(1).
	PaddingRight(1)

var (
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	nameStyle      = lipgloss.NewStyle().Bold(true)
	doneStyle      = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("244"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	noticeOKStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	noticeErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)
