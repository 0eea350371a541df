// Package text renders review threads for humans on a terminal.
package text

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bkyoung/branch-review/internal/domain"
)

// Writer renders threads as indented plain text.
type Writer struct {
	out   io.Writer
	title cases.Caser
}

// NewWriter creates a text writer targeting out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out, title: cases.Title(language.English)}
}

// WriteThreads renders a thread list with a trailing summary line.
func (w *Writer) WriteThreads(threads []domain.Thread) error {
	if len(threads) == 0 {
		_, err := fmt.Fprintln(w.out, "No comments.")
		return err
	}

	open := 0
	for i, th := range threads {
		if i > 0 {
			if _, err := fmt.Fprintln(w.out); err != nil {
				return err
			}
		}
		if err := w.WriteThread(th); err != nil {
			return err
		}
		if !th.Resolved {
			open++
		}
	}

	_, err := fmt.Fprintf(w.out, "\n%d comment%s (%d open, %d resolved)\n",
		len(threads), plural(len(threads)), open, len(threads)-open)
	return err
}

// WriteThread renders one thread with its replies.
func (w *Writer) WriteThread(th domain.Thread) error {
	status := "open"
	if th.Resolved {
		status = "resolved"
	}

	if _, err := fmt.Fprintf(w.out, "#%d [%s] %s, %s\n",
		th.ID, w.title.String(status), th.FilePath, th.LineRangeDisplay()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.out, "%s · %s\n", th.Author, th.RelativeTime()); err != nil {
		return err
	}
	if err := writeIndented(w.out, th.Body, "  "); err != nil {
		return err
	}

	for _, reply := range th.Replies {
		if _, err := fmt.Fprintf(w.out, "  ↳ %s · %s\n", reply.Author, reply.RelativeTime()); err != nil {
			return err
		}
		if err := writeIndented(w.out, reply.Body, "    "); err != nil {
			return err
		}
	}
	return nil
}

func writeIndented(out io.Writer, body, indent string) error {
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		if _, err := fmt.Fprintf(out, "%s%s\n", indent, line); err != nil {
			return err
		}
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
