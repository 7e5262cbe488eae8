package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"

	"github.com/ioctiller/ioctiller/dispatch"
	"github.com/ioctiller/ioctiller/fuzz"
	"github.com/ioctiller/ioctiller/shared"
	"github.com/ioctiller/ioctiller/stats"
	"github.com/ioctiller/ioctiller/windows"
)

var version = "0.1.0"

type cmdGlobal struct {
	flagDebug         bool
	flagOptions       []string
	flagMetricsListen string
	flagRetries       uint

	definition *shared.Definition
	device     windows.Device
	logger     *logrus.Logger
	runLogger  *logrus.Entry
	stats      *stats.Set
	prompt     *prompter
	stopStats  func()
}

func main() {
	// Global flags
	globalCmd := cmdGlobal{device: windows.NewDevice()}

	app := globalCmd.command()

	// Run the main command and handle errors
	err := app.Execute()
	if err != nil {
		globalCmd.postRun(nil, nil)
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func (c *cmdGlobal) command() *cobra.Command {
	app := &cobra.Command{
		Use:   "ioctiller <filename|->",
		Short: "Send and fuzz IOCTLs described in a definition file",
		Long: `Send and fuzz IOCTLs described in a definition file

Without a sub-command, the mode (send one, fuzz one, fuzz many) and the
IOCTLs are selected interactively.
`,
		Args:               cobra.ExactArgs(1),
		PersistentPreRunE:  c.preRun,
		PersistentPostRunE: c.postRun,
		RunE:               c.runInteractive,
		SilenceUsage:       true,
		SilenceErrors:      true,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	app.PersistentFlags().BoolVar(&c.flagDebug, "debug", false, "Enable debug output")
	app.PersistentFlags().StringSliceVarP(&c.flagOptions, "options", "o",
		[]string{}, "Override options (list of key=value)"+"``")
	app.PersistentFlags().StringVar(&c.flagMetricsListen, "metrics-listen", "",
		"Address to expose metrics on while running"+"``")
	app.PersistentFlags().UintVar(&c.flagRetries, "retries", 0,
		"Number of times a failed dispatch is retried"+"``")

	// Version handling
	app.SetVersionTemplate("{{.Version}}\n")
	app.Version = version

	sendCmd := cmdSend{global: c}
	app.AddCommand(sendCmd.command())

	fuzzCmd := cmdFuzz{global: c}
	app.AddCommand(fuzzCmd.command())

	fuzzManyCmd := cmdFuzzMany{global: c}
	app.AddCommand(fuzzManyCmd.command())

	listCmd := cmdList{global: c}
	app.AddCommand(listCmd.command())

	validateCmd := cmdValidate{global: c}
	app.AddCommand(validateCmd.command())

	return app
}

func (c *cmdGlobal) preRun(cmd *cobra.Command, args []string) error {
	var err error

	c.logger, err = shared.GetLogger(c.flagDebug)
	if err != nil {
		return fmt.Errorf("Failed to get logger: %w", err)
	}

	c.runLogger = c.logger.WithField("run", uuid.NewString())

	if c.prompt == nil {
		c.prompt = newPrompter(os.Stdin, os.Stderr)
	}

	c.stats = stats.New()

	if c.flagMetricsListen != "" {
		server, err := c.stats.Serve(c.flagMetricsListen)
		if err != nil {
			return fmt.Errorf("Failed to listen on %q: %w", c.flagMetricsListen, err)
		}

		c.runLogger.WithField("address", c.flagMetricsListen).Info("Serving metrics")

		c.stopStats = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_ = server.Shutdown(ctx)
		}
	}

	// Get the definition
	c.definition, err = getDefinition(args[0], c.flagOptions)
	if err != nil {
		return err
	}

	return nil
}

func (c *cmdGlobal) postRun(cmd *cobra.Command, args []string) error {
	if c.stopStats != nil {
		c.stopStats()
		c.stopStats = nil
	}

	if c.runLogger == nil {
		return nil
	}

	sum, err := c.stats.Summary()
	if err != nil || sum.Dispatches == 0 {
		return nil
	}

	c.runLogger.WithFields(logrus.Fields{
		"dispatches": sum.Dispatches,
		"failures":   sum.Failures,
		"leaks":      sum.Leaks,
		"bytes":      sum.Bytes,
	}).Info("Summary")

	return nil
}

func (c *cmdGlobal) runner() fuzz.Runner {
	return fuzz.Runner{Logger: c.runLogger, Attempts: c.flagRetries + 1}
}

func (c *cmdGlobal) target(req shared.Request) dispatch.Target {
	return dispatch.Target{
		Device:     c.device,
		DevicePath: c.definition.Device,
		Request:    req,
		Logger:     c.runLogger,
		Stats:      c.stats,
	}
}

// runInteractive lets the user pick the mode before running it.
func (c *cmdGlobal) runInteractive(cmd *cobra.Command, args []string) error {
	if !c.prompt.interactive() {
		return errors.New("No sub-command given and standard input is not a terminal")
	}

	mode, err := c.prompt.selectIndex("Please select the mode", []string{"Send one", "Fuzz one", "Fuzz many"})
	if err != nil {
		return err
	}

	switch mode {
	case 0:
		return c.send("")
	case 1:
		return c.fuzzOne("", 0)
	default:
		return c.fuzzMany(nil)
	}
}

func getDefinition(fname string, options []string) (*shared.Definition, error) {
	var (
		data []byte
		err  error
	)

	// Read the provided file, or if none was given, read from stdin
	if fname == "" || fname == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(fname)
	}

	if err != nil {
		return nil, &shared.ConfigError{Path: fname, Err: err}
	}

	def, err := parseDefinition(data, strings.EqualFold(filepath.Ext(fname), ".toml"), options)
	if err != nil {
		return nil, &shared.ConfigError{Path: fname, Err: err}
	}

	return def, nil
}

func parseDefinition(data []byte, isTOML bool, options []string) (*shared.Definition, error) {
	var def shared.Definition

	if isTOML {
		meta, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&def)
		if err != nil {
			return nil, err
		}

		undecoded := meta.Undecoded()
		if len(undecoded) > 0 {
			return nil, fmt.Errorf("Unknown key %q", undecoded[0].String())
		}
	} else {
		// Parse the yaml input
		err := yaml.UnmarshalStrict(data, &def)
		if err != nil {
			return nil, err
		}
	}

	// Set options from the command line
	for _, o := range options {
		key, value, ok := strings.Cut(o, "=")
		if !ok {
			return nil, errors.New("Options need to be of type key=value")
		}

		err := def.SetValue(key, value)
		if err != nil {
			return nil, fmt.Errorf("Failed to set option %s: %w", o, err)
		}
	}

	err := shared.RenderDefinition(&def)
	if err != nil {
		return nil, err
	}

	// Apply some defaults on top of the provided configuration
	def.SetDefaults()

	// Validate the result
	err = def.Validate()
	if err != nil {
		return nil, err
	}

	return &def, nil
}
