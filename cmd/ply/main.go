// Ply reads a property list in XML or binary form, optionally edits it, and
// writes it back out as XML, binary, YAML or an indented dump.
//
//	ply [options] [file]
//
// With no file, or a file named "-", the property list is read from stdin.
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/mattn/go-isatty"
	"github.com/zdypro888/go-plist"
	"gopkg.in/yaml.v2"
)

type options struct {
	Convert string   `short:"c" long:"convert" description:"output format (defaults to pretty, or the input format with -o)" choice:"xml" choice:"binary" choice:"yaml" choice:"pretty"`
	Out     string   `short:"o" long:"out" description:"write output to this file instead of stdout"`
	Path    string   `short:"p" long:"path" description:"output only the node at this slash separated path"`
	Set     []string `short:"s" long:"set" description:"set path=[type:]value, type one of string, int, uint, real, bool, date, data, uuid, uid, dict, array"`
	Delete  []string `short:"d" long:"delete" description:"remove the node at path (applied before --set)"`
	Indent  string   `short:"I" long:"indent" description:"indentation for XML output" default:"\t"`
	Color   string   `long:"color" description:"colorize pretty output" choice:"auto" choice:"always" choice:"never" default:"auto"`
	Verbose bool     `short:"v" long:"verbose" description:"log formats and sizes"`
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("ply: ")

	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] [file]"
	args, err := parser.Parse()
	if err != nil {
		if ferr, ok := err.(*flags.Error); ok && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if len(args) > 1 {
		log.Fatalf("expected at most one input file, got %d", len(args))
	}

	if err := run(&opts, args, os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(opts *options, args []string, stdin io.Reader, stdout io.Writer) error {
	name := "-"
	if len(args) > 0 {
		name = args[0]
	}
	data, err := readInput(name, stdin)
	if err != nil {
		return err
	}

	root, format, err := plist.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if opts.Verbose {
		log.Printf("%s: %v property list, %d bytes", name, format, len(data))
	}

	for _, path := range opts.Delete {
		if err := deletePath(root, path); err != nil {
			return err
		}
	}
	for _, assignment := range opts.Set {
		path, value, err := parseAssignment(assignment)
		if err != nil {
			return err
		}
		if root, err = setPath(root, path, value); err != nil {
			return err
		}
	}

	n := root
	if opts.Path != "" {
		if n, err = plist.AccessPathString(root, opts.Path); err != nil {
			return err
		}
	}

	convert := opts.Convert
	if convert == "" {
		convert = "pretty"
		if opts.Out != "" {
			convert = formatName(format)
		}
	}

	// a file is never a terminal, so only stdout may be colorized
	var tty io.Writer
	if opts.Out == "" {
		tty = stdout
	}
	out, err := render(n, convert, opts.Indent, shouldColor(opts.Color, tty))
	if err != nil {
		return err
	}
	if opts.Verbose {
		log.Printf("writing %d bytes of %s", len(out), convert)
	}
	if opts.Out != "" {
		return writeFile(opts.Out, out)
	}
	_, err = stdout.Write(out)
	return err
}

func readInput(name string, stdin io.Reader) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}

// writeFile is only called once the output is fully rendered, so a failed
// conversion never truncates an existing file.
func writeFile(name string, data []byte) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatName(f plist.Format) string {
	if f == plist.BinaryFormat {
		return "binary"
	}
	return "xml"
}

func render(n *plist.Node, convert, indent string, colorize bool) ([]byte, error) {
	buf := &bytes.Buffer{}
	switch convert {
	case "xml":
		enc := plist.NewEncoder(buf)
		enc.Indent(indent)
		if err := enc.Encode(n); err != nil {
			return nil, err
		}
	case "binary":
		if err := plist.NewEncoderForFormat(buf, plist.BinaryFormat).Encode(n); err != nil {
			return nil, err
		}
	case "yaml":
		out, err := yaml.Marshal(toYAML(n))
		if err != nil {
			return nil, err
		}
		buf.Write(out)
	case "pretty":
		if err := newDumper(buf, colorize).dump(n); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown output format %q", convert)
	}
	return buf.Bytes(), nil
}

func shouldColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
