package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/germanamz/tradfri/pkg/device"
)

var (
	colorMuted   = lipgloss.Color("8")
	colorError   = lipgloss.Color("1")
	colorSuccess = lipgloss.Color("2")
	colorWarning = lipgloss.Color("3")

	headerStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	onStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	offStyle     = lipgloss.NewStyle().Foreground(colorMuted)
)

func powerLabel(p device.Power) string {
	if p == device.On {
		return onStyle.Render("on")
	}
	return offStyle.Render("off")
}

// renderDevices formats devices as aligned columns. Name widths are measured
// in terminal cells so wide characters line up.
func renderDevices(devices []*device.Device) string {
	if len(devices) == 0 {
		return dimStyle.Render("no devices") + "\n"
	}

	idWidth, nameWidth := len("ID"), len("NAME")
	for _, d := range devices {
		idWidth = max(idWidth, len(strconv.FormatUint(d.ID, 10)))
		nameWidth = max(nameWidth, runewidth.StringWidth(d.Name))
	}

	var sb strings.Builder

	header := fmt.Sprintf("%-*s  %s  %-5s  %s", idWidth, "ID", runewidth.FillRight("NAME", nameWidth), "POWER", "TEMPERATURE")
	sb.WriteString(headerStyle.Render(header))
	sb.WriteString("\n")

	for _, d := range devices {
		power := powerLabel(d.Bulb.Power)
		pad := strings.Repeat(" ", 5-len(d.Bulb.Power.String()))

		fmt.Fprintf(&sb, "%-*d  %s  %s%s  %s\n",
			idWidth, d.ID,
			runewidth.FillRight(d.Name, nameWidth),
			power, pad,
			d.Bulb.Temperature,
		)
	}

	return sb.String()
}

// renderChange summarizes a device after a mutation.
func renderChange(d *device.Device) string {
	return fmt.Sprintf("%s %s %s %s",
		successStyle.Render("✓"),
		d.Name,
		powerLabel(d.Bulb.Power),
		dimStyle.Render(d.Bulb.Temperature.String()),
	)
}
