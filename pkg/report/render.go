package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// Render writes s to w, decoding track names with enc.
func Render(w io.Writer, s Summary, enc TextEncoding) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render("MIDI file") + "\n")
	field := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	field("Format", fmt.Sprintf("%d (%s)", uint16(s.Format), s.Format))
	field("Timing", s.Timing)
	field("Tracks", strconv.Itoa(len(s.Tracks)))
	field("Length", fmt.Sprintf("%d ticks", s.TotalTicks))
	if s.Duration > 0 {
		field("Duration", s.Duration.Round(time.Millisecond).String())
	}

	if len(s.Tempos) > 0 {
		b.WriteString("\n" + titleStyle.Render("Tempo") + "\n")
		rows := [][]string{{"Tick", "BPM", "Track"}}
		for _, tc := range s.Tempos {
			rows = append(rows, []string{
				strconv.FormatUint(tc.Tick, 10),
				strconv.FormatFloat(tc.BPM(), 'f', 2, 64),
				strconv.Itoa(tc.Track),
			})
		}
		b.WriteString(table(rows))
	}

	if len(s.Tracks) > 0 {
		b.WriteString("\n" + titleStyle.Render("Tracks") + "\n")
		rows := [][]string{{"#", "Name", "Events", "Notes", "Channel", "Meta", "SysEx", "Ticks", "Channels"}}
		for _, ts := range s.Tracks {
			rows = append(rows, []string{
				strconv.Itoa(ts.Index),
				enc.Decode(ts.Name),
				strconv.Itoa(ts.Events),
				strconv.Itoa(ts.Notes),
				strconv.Itoa(ts.Channel),
				strconv.Itoa(ts.Meta),
				strconv.Itoa(ts.SysEx),
				strconv.FormatUint(ts.Ticks, 10),
				channelList(ts.Channels),
			})
		}
		b.WriteString(table(rows))
	}

	_, err := fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
	return err
}

// table aligns rows into columns. The first row is the header.
func table(rows [][]string) string {
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := cellStyle.Width(widths[i] + 2)
			if r == 0 {
				style = style.Inherit(headerStyle)
			}
			cells[i] = style.Render(cell)
		}
		b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " ") + "\n")
	}
	return b.String()
}

// channelList prints channels 1-based, as musicians number them.
func channelList(chs []uint8) string {
	if len(chs) == 0 {
		return "-"
	}
	parts := make([]string, len(chs))
	for i, ch := range chs {
		parts[i] = strconv.Itoa(int(ch) + 1)
	}
	return strings.Join(parts, ",")
}
