// Package printer renders user-facing result output. Output is buffered
// through a deferred writer so result lines never interleave with log
// lines emitted during the run.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/complizen/hardgen/pkgs/styles"
)

var ConsolePrinter = New(os.Stdout)

type Printer struct {
	writer io.Writer
}

func New(w io.Writer) *Printer {
	return &Printer{writer: w}
}

// Ctx returns a printer bound to the writer carried by ctx, falling back
// to the receiver's writer when none is set.
func (p *Printer) Ctx(ctx context.Context) *Printer {
	if w, ok := GetWriter(ctx); ok {
		return New(w)
	}
	return p
}

func Ctx(ctx context.Context) *Printer {
	return ConsolePrinter.Ctx(ctx)
}

// prettyError is implemented by errors that carry their own terminal
// rendering, like template errors with source context.
type prettyError interface {
	Pretty() string
}

// FatalError prints a terminal-friendly rendering of err.
func (p *Printer) FatalError(err error) {
	var pe prettyError
	if errors.As(err, &pe) {
		fmt.Fprintln(p.writer, pe.Pretty())
		return
	}

	fmt.Fprintln(p.writer, styles.ErrorBox("Generation Failed", err.Error()))
}

// Generated prints the success line for a rendered script.
func (p *Printer) Generated(template, output string) {
	fmt.Fprintf(p.writer, "%s %s %s %s\n",
		styles.Success(styles.Check),
		template,
		styles.Subtle(styles.Arrow),
		output,
	)
}
