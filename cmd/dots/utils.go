package main

import "github.com/charmbracelet/lipgloss"

var (
	green = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	gray  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)
