package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/stampgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("stampgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
StampGo - An ahead-of-time template compiler.

Usage:
  stampgo [options] [TEMPLATE_PATH]

Arguments:
  TEMPLATE_PATH
    Path to a single template file or a directory of template files.

Options:
`)
		flagSet.PrintDefaults()
	}

	templateFlag := flagSet.String("template", "", "Path to the template file or directory.")
	tFlag := flagSet.String("t", "", "Path to the template file or directory (shorthand).")
	partialsFlag := flagSet.String("partials", "", "Base directory for partial lookup. Defaults to each template's directory.")
	extFlag := flagSet.String("ext", ".hbs", "Template file extension used for discovery and extensionless partials.")
	modeFlag := flagSet.String("mode", "auto", "Render mode. Options: 'auto', 'text', or 'markup'.")
	backendFlag := flagSet.String("backend", "buffer", "Code generation backend. Options: 'buffer' or 'view'.")
	printFlag := flagSet.String("print", "none", "Debug print level. Options: 'none', 'ast', or 'code'.")
	dataFlag := flagSet.String("data", "", "Path to an HCL data file. When set, compiled templates are rendered.")
	outFlag := flagSet.String("o", "", "Directory for rendered output files. Empty writes to stdout.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 4, "Number of concurrent compilation workers.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *templateFlag != "" {
		path = *templateFlag
	} else if *tFlag != "" {
		path = *tFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Template path determined.", "path", path)

	if path == "" {
		slog.Debug("No template path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	ext := *extFlag
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		TemplatesPath: path,
		PartialsDir:   *partialsFlag,
		Ext:           ext,
		Mode:          strings.ToLower(*modeFlag),
		Backend:       strings.ToLower(*backendFlag),
		Print:         strings.ToLower(*printFlag),
		DataPath:      *dataFlag,
		OutDir:        *outFlag,
		LogFormat:     logFormat,
		LogLevel:      logLevel,
		WorkerCount:   *workersFlag,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
