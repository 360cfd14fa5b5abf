package cli

import (
	"fmt"

	"github.com/roach88/docsql/internal/collection"
	"github.com/roach88/docsql/internal/doc"
)

// parseSpec decodes a JSON object argument, keeping key order so multi-key
// sorts work from the command line. An empty argument yields nil.
func parseSpec(name, arg string) (any, error) {
	if arg == "" {
		return nil, nil
	}
	d, err := doc.DecodeOrdered([]byte(arg))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s", name), err)
	}
	return d, nil
}

// optionalArg returns args[i], or "" when it was not given.
func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// failOperation reports a failed operation in structured output formats and
// returns the matching exit error. Text mode leaves reporting to the caller
// of Execute.
func failOperation(f *OutputFormatter, message string, err error) error {
	if f.Format != "text" {
		_ = f.Error(collection.ErrorCode(err), err.Error(), nil)
	}
	return WrapExitError(ExitFailure, message, err)
}
