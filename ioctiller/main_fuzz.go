package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ioctiller/ioctiller/dispatch"
	"github.com/ioctiller/ioctiller/fuzz"
)

type cmdFuzz struct {
	cmdFuzz *cobra.Command
	global  *cmdGlobal

	flagIoctl   string
	flagWorkers int
}

type cmdFuzzMany struct {
	cmdFuzzMany *cobra.Command
	global      *cmdGlobal

	flagIoctls []string
}

func (c *cmdFuzz) command() *cobra.Command {
	c.cmdFuzz = &cobra.Command{
		Use:   "fuzz <filename|->",
		Short: "Send one IOCTL from many concurrent workers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workers := c.flagWorkers
			if !cmd.Flags().Changed("workers") {
				workers = 0
			} else if workers < 1 {
				return fuzz.ErrInvalidWorkerCount
			}

			return c.global.fuzzOne(c.flagIoctl, workers)
		},
	}

	c.cmdFuzz.Flags().StringVar(&c.flagIoctl, "ioctl", "", "Name of the IOCTL to fuzz"+"``")
	c.cmdFuzz.Flags().IntVarP(&c.flagWorkers, "workers", "w", 0, "Number of concurrent workers"+"``")

	return c.cmdFuzz
}

func (c *cmdFuzzMany) command() *cobra.Command {
	c.cmdFuzzMany = &cobra.Command{
		Use:   "fuzz-many <filename|->",
		Short: "Send several IOCTLs concurrently, one worker each",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.global.fuzzMany(c.flagIoctls)
		},
	}

	c.cmdFuzzMany.Flags().StringSliceVar(&c.flagIoctls, "ioctl", nil, "Names of the IOCTLs to fuzz (at least 2)"+"``")

	return c.cmdFuzzMany
}

// fuzzOne fuzzes a single IOCTL. A worker count of 0 means it is asked for.
func (c *cmdGlobal) fuzzOne(name string, workers int) error {
	req, err := c.selectOne(name, "Please select the IOCTL to fuzz")
	if err != nil {
		return err
	}

	if workers == 0 {
		workers, err = c.selectWorkers()
		if err != nil {
			return err
		}
	}

	c.runLogger.WithField("request", req.String()).Infof("Fuzzing with %d workers", workers)

	err = fuzz.Single(c.runner(), dispatch.FuzzDispatcher{Target: c.target(req)}, workers)
	if err != nil {
		return fmt.Errorf("Failed to fuzz %q: %w", req.Name(), err)
	}

	return nil
}

func (c *cmdGlobal) fuzzMany(names []string) error {
	reqs, err := c.selectMany(names, "Please select the IOCTLs to fuzz")
	if err != nil {
		return err
	}

	dispatchers := make([]dispatch.FuzzDispatcher, 0, len(reqs))
	for _, req := range reqs {
		dispatchers = append(dispatchers, dispatch.FuzzDispatcher{Target: c.target(req)})
	}

	c.runLogger.Infof("Fuzzing %d IOCTLs", len(dispatchers))

	err = fuzz.Multiple(c.runner(), dispatchers)
	if err != nil {
		return fmt.Errorf("Failed to fuzz: %w", err)
	}

	return nil
}
