package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type cmdValidate struct {
	cmdValidate *cobra.Command
	global      *cmdGlobal
}

func (c *cmdValidate) command() *cobra.Command {
	c.cmdValidate = &cobra.Command{
		Use:   "validate <filename|->",
		Short: "Validate definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The definition was loaded and validated already, also build
			// every input buffer.
			reqs, err := c.global.definition.Requests()
			if err != nil {
				return err
			}

			for _, req := range reqs {
				_, err := req.BuildInput()
				if err != nil {
					return fmt.Errorf("Failed to build input buffer of %q: %w", req.Name(), err)
				}
			}

			c.global.runLogger.Infof("Definition is valid, %d IOCTLs", len(reqs))

			return nil
		},
	}

	return c.cmdValidate
}
