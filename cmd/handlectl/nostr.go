package main

import (
	"fmt"

	"github.com/atbitcoin/handlekeeper/internal/infrastructure/file"
	"github.com/atbitcoin/handlekeeper/pkg/nostrutil"
	"github.com/urfave/cli/v2"
)

var signnostr = cli.Command{
	Name:      "sign-nostr",
	Usage:     "sign a nostr event with the key of a handle",
	ArgsUsage: "<label@space> <event.json>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "stdout",
			Usage: "print the signed event instead of writing <event>_signed.json",
		},
	},
	Action: signNostrAction,
}

func signNostrAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}
	handle, path := ctx.Args().Get(0), ctx.Args().Get(1)

	buf, _, err := file.Open(path)
	if err != nil {
		return err
	}
	data, err := nostrutil.ParseEventData(buf)
	if err != nil {
		return err
	}

	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := state.unlock(); err != nil {
		return err
	}
	event, err := state.SignerService().SignEvent(ctx.Context, handle, *data)
	if err != nil {
		return err
	}

	if ctx.Bool("stdout") {
		printJSON(event)
		return nil
	}
	out := file.SignedFileName(path)
	if err := file.Save(out, event); err != nil {
		return err
	}
	fmt.Printf("Signed event written to %s\n", out)
	return nil
}
