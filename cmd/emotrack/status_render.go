package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"emotrack/internal/digest"
	"emotrack/internal/series"
	"emotrack/internal/session"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	clearLine  = "\r\x1b[2K"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

// renderLiveLine is the single-line recording indicator redrawn in place.
func renderLiveLine(snap session.Snapshot, colorize bool) string {
	var b strings.Builder
	marker := "REC"
	if colorize {
		marker = ansiRed + "● REC" + ansiReset
	}
	fmt.Fprintf(&b, "%s %s  points %d", marker, digest.FormatClock(snap.Elapsed), snap.Points)
	if snap.Current != nil {
		for _, name := range series.Emotions {
			fmt.Fprintf(&b, "  %s %.0f%%", name, snap.Current.Get(name)*100)
		}
	}
	if snap.Stats.Errors > 0 {
		fmt.Fprintf(&b, "  errors %d", snap.Stats.Errors)
	}
	return b.String()
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
