package main

import (
	"github.com/spf13/cobra"

	"github.com/ioctiller/ioctiller/dispatch"
)

type cmdSend struct {
	cmdSend *cobra.Command
	global  *cmdGlobal

	flagIoctl string
}

func (c *cmdSend) command() *cobra.Command {
	c.cmdSend = &cobra.Command{
		Use:   "send <filename|->",
		Short: "Send a single IOCTL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.global.send(c.flagIoctl)
		},
	}

	c.cmdSend.Flags().StringVar(&c.flagIoctl, "ioctl", "", "Name of the IOCTL to send"+"``")

	return c.cmdSend
}

func (c *cmdGlobal) send(name string) error {
	req, err := c.selectOne(name, "Please select the IOCTL to send")
	if err != nil {
		return err
	}

	return c.runner().Send(dispatch.IoctlDispatcher{Target: c.target(req)})
}
