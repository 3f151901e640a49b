// sigil - JSON codec CLI tool
//
// Usage:
//
//	sigil check [file]              Validate a JSON document
//	sigil fmt [--indent=S] [file]   Pretty-print a JSON document
//	sigil compact [file]            Minify a JSON document
//	sigil lines [file]              Validate JSON Lines input, one doc per line
//	sigil version                   Print version info
//
// If no file is given, reads from stdin.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Neumenon/sigil/sigil"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	indent := "  "
	fileArg := ""
	verbose := false
	for _, arg := range os.Args[2:] {
		switch {
		case strings.HasPrefix(arg, "--indent="):
			indent = strings.TrimPrefix(arg, "--indent=")
		case arg == "--verbose":
			verbose = true
		default:
			if !strings.HasPrefix(arg, "-") && arg != "-" {
				fileArg = arg
			}
		}
	}

	var input io.Reader = os.Stdin
	if fileArg != "" {
		f, err := os.Open(fileArg)
		if err != nil {
			fatal("open file: %v", err)
		}
		defer f.Close()
		input = f
	}

	var logger *zap.Logger
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fatal("init logger: %v", err)
		}
		defer l.Sync()
		logger = l
	}

	switch cmd {
	case "check":
		cmdCheck(input)
	case "fmt":
		cmdReformat(input, indent)
	case "compact":
		cmdReformat(input, "")
	case "lines":
		cmdLines(input, logger)
	case "version", "-v", "--version":
		fmt.Printf("sigil %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `sigil - JSON codec CLI tool

Usage:
  sigil check [file]              Validate a JSON document
  sigil fmt [--indent=S] [file]   Pretty-print a JSON document
  sigil compact [file]            Minify a JSON document
  sigil lines [file]              Validate JSON Lines input
  sigil version                   Print version info

Options:
  --indent=S    Indent string for fmt (default: two spaces)
  --verbose     Log per-document detail to stderr

If no file is given, reads from stdin.

Examples:
  echo '{"b":1,"a":[1,2]}' | sigil fmt
  cat events.jsonl | sigil lines
`)
}

// cmdCheck validates one document and reports the diagnostic with its
// span and source excerpt on failure.
func cmdCheck(r io.Reader) {
	data, err := io.ReadAll(r)
	if err != nil {
		fatal("read input: %v", err)
	}
	if cerr := sigil.Check(data); cerr != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", cerr)
		os.Exit(1)
	}
	fmt.Println("valid")
}

// cmdReformat rewrites a document at the token level without a target
// shape.
func cmdReformat(r io.Reader, indent string) {
	data, err := io.ReadAll(r)
	if err != nil {
		fatal("read input: %v", err)
	}
	out, rerr := sigil.Reformat(data, indent)
	if rerr != nil {
		fatal("reformat: %v", rerr)
	}
	os.Stdout.Write(out)
	fmt.Println()
}

// cmdLines validates each line of JSON Lines input. Blank lines are
// skipped; the first bad line stops the run.
func cmdLines(r io.Reader, logger *zap.Logger) {
	data, err := io.ReadAll(r)
	if err != nil {
		fatal("read input: %v", err)
	}
	n := 0
	for lineNo, line := range strings.Split(string(data), "\n") {
		doc := strings.TrimSpace(line)
		if doc == "" {
			continue
		}
		if cerr := sigil.Check([]byte(doc)); cerr != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", lineNo+1, cerr)
			os.Exit(1)
		}
		n++
		if logger != nil {
			logger.Info("document ok",
				zap.Int("line", lineNo+1), zap.Int("bytes", len(doc)))
		}
	}
	fmt.Printf("%d documents valid\n", n)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "sigil: "+format+"\n", args...)
	os.Exit(1)
}
