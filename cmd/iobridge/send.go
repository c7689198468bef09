package main

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nerrad567/iobridge/internal/osc"
)

const sendTimeout = 2 * time.Second

func sendAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.ShowSubcommandHelp(c)
	}

	target := c.String(flagTarget)
	if target == "" {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		target = localTarget(cfg.OSC.Listen)
	}

	msg := osc.Message{
		Address: c.Args().First(),
		Args:    parseSendArgs(c.Args().Tail()),
	}

	sender, err := osc.NewSender(target)
	if err != nil {
		return err
	}
	defer sender.Close()

	ctx, cancel := context.WithTimeout(c.Context, sendTimeout)
	defer cancel()
	if err := sender.Send(ctx, msg); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "sent %s to %s\n", msg, target)
	return nil
}

// parseSendArgs types command-line words the way a Pd message box would:
// integers become int32, other finite numbers float32, the rest strings.
func parseSendArgs(words []string) []any {
	if len(words) == 0 {
		return nil
	}
	args := make([]any, len(words))
	for i, w := range words {
		if n, err := strconv.ParseInt(w, 10, 32); err == nil {
			args[i] = int32(n)
		} else if f, err := strconv.ParseFloat(w, 32); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			args[i] = float32(f)
		} else {
			args[i] = w
		}
	}
	return args
}

// localTarget turns a listen address into one a local client can send to.
// Wildcard hosts become the loopback address.
func localTarget(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
