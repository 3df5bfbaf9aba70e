// Command docagent answers questions about a PDF with a ReAct agent that can search
// Wikipedia, calculate, and research the document.
//
//	docagent ask paper.pdf "What is the title of this paper?"
//	docagent chat paper.pdf
//	docagent serve --addr :8080
//
// Settings come from the YAML file given with -f, .env files, and the environment; see the
// config package.
package main

import (
	"errors"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(args []string, stdin io.ReadCloser, stdout, stderr io.Writer) error {
	return newOptions(stdin, stdout, stderr).Run(args)
}

// Run parses args and executes the selected command.
func (o *Options) Run(args []string) error {
	parser := flags.NewParser(o, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			_, _ = io.WriteString(o.stdout, err.Error()+"\n")
			return nil
		}
		_, _ = io.WriteString(o.stderr, "docagent: "+err.Error()+"\n")
		return err
	}
	return nil
}
