// Command picodoc-markdown is a filter that converts a Markdown body
// into PicoDoc markup. Installed on $PATH it is picked up by the
// compiler whenever a document calls #markdown:
//
//	#markdown """
//	## Heading
//
//	Some *emphasized* prose.
//	"""
//
// Like every filter it reads a JSON request on stdin and writes markup
// to stdout.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/picodoc-lang/picodoc/convert"
)

// request carries the fields of the filter protocol this program uses.
// Arguments and the env map are ignored.
type request struct {
	Body string `json:"body"`
}

func main() {
	if err := run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}

	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	if req.Body == "" {
		return fmt.Errorf("no body supplied: put the Markdown inside the filter call")
	}

	markup, err := convert.FromMarkdown([]byte(req.Body))
	if err != nil {
		return err
	}

	_, err = io.WriteString(out, markup)
	return err
}
