package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ioctiller/ioctiller/windows"
)

type cmdList struct {
	cmdList *cobra.Command
	global  *cmdGlobal
}

func (c *cmdList) command() *cobra.Command {
	c.cmdList = &cobra.Command{
		Use:   "list <filename|->",
		Short: "List the IOCTLs of a definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Device: %s\n", c.global.definition.Device)

			for i, ioctl := range c.global.definition.Ioctls {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d]: %s(0x%X) %s in=0x%X out=0x%X\n", i, ioctl.Name, ioctl.Code,
					windows.DecodeCode(ioctl.Code), ioctl.InputBufferSize, ioctl.OutputBufferSize)
			}

			return nil
		},
	}

	return c.cmdList
}
