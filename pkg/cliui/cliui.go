// Package cliui provides reusable terminal UI helpers (spinners, step indicators,
// markdown rendering) for unistream CLI commands.
package cliui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// eventLabelStyles colors transcript event labels by event type.
var eventLabelStyles = map[string]lipgloss.Style{
	"text":         lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	"reasoning":    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	"tool_calls":   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	"grounding":    lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
	"base64_image": lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
	"usage":        lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	"speed":        lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	"stop":         lipgloss.NewStyle().Foreground(lipgloss.Color("82")),
	"error":        lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
}

var defaultEventLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

// spinnerFrames matches bubbletea's spinner.Dot pattern.
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex

	// Run spinner animation in background
	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)

	// Clear the spinner line and print final result
	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// EventLabel renders a transcript event type as a fixed-width colored label.
func EventLabel(eventType string) string {
	style, ok := eventLabelStyles[eventType]
	if !ok {
		style = defaultEventLabelStyle
	}
	return style.Render(fmt.Sprintf("%-12s", eventType))
}

// TerminalWidth returns the current stdout terminal width, or fallback when
// stdout is not a terminal or the size cannot be determined.
func TerminalWidth(fallback int) int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return fallback
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}

// RenderMarkdown renders markdown content for terminal display using glamour.
func RenderMarkdown(content string) (string, error) {
	width := TerminalWidth(80)
	if width > 100 {
		width = 100
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
