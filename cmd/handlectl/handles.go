package main

import (
	"fmt"

	"github.com/atbitcoin/handlekeeper/internal/core/application"
	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/urfave/cli/v2"
)

var addhandle = cli.Command{
	Name:      "add",
	Usage:     "add a handle and derive its key",
	ArgsUsage: "<label@space>",
	Action:    addHandleAction,
}

var removehandle = cli.Command{
	Name:      "remove",
	Usage:     "remove a handle, its derivation index is never reused",
	ArgsUsage: "<label@space>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "force",
			Usage: "remove the handle even if it holds a certificate",
		},
	},
	Action: removeHandleAction,
}

var listhandles = cli.Command{
	Name:   "list",
	Usage:  "list the handles of the keystore",
	Action: listHandlesAction,
}

var showhandle = cli.Command{
	Name:      "show",
	Usage:     "show the keys, script and certificate of a handle",
	ArgsUsage: "<label@space>",
	Action:    showHandleAction,
}

type handleView struct {
	Handle         string                  `json:"handle"`
	DerivationPath string                  `json:"path"`
	PublicKey      string                  `json:"pubkey"`
	NPub           string                  `json:"npub"`
	ScriptPubkey   string                  `json:"script_pubkey"`
	Certificate    *domain.CertificateData `json:"cert,omitempty"`
}

func newHandleView(info application.HandleInfo) handleView {
	return handleView{
		Handle:         info.Handle,
		DerivationPath: info.DerivationPath,
		PublicKey:      info.PublicKey,
		NPub:           info.NPub,
		ScriptPubkey:   info.ScriptPubkey,
		Certificate:    info.Certificate,
	}
}

func addHandleAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := state.KeystoreService()
	name, _, err := svc.CreateHandle(ctx.Context, ctx.Args().First())
	if err != nil {
		return err
	}
	info, err := svc.GetHandle(ctx.Context, name)
	if err != nil {
		return err
	}

	printJSON(newHandleView(*info))
	return nil
}

func removeHandleAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := state.KeystoreService()
	name := ctx.Args().First()
	info, err := svc.GetHandle(ctx.Context, name)
	if err != nil {
		return err
	}
	if info.Certificate != nil && !ctx.Bool("force") {
		return fmt.Errorf(
			"%s holds a certificate, export it first or use --force", info.Handle,
		)
	}

	if _, err := svc.RemoveHandle(ctx.Context, name); err != nil {
		return err
	}

	fmt.Printf("%s removed\n", info.Handle)
	return nil
}

func listHandlesAction(ctx *cli.Context) error {
	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := state.KeystoreService().ListHandles(ctx.Context)
	if err != nil {
		return err
	}

	views := make([]handleView, 0, len(list))
	for _, info := range list {
		views = append(views, newHandleView(info))
	}
	printJSON(views)
	return nil
}

func showHandleAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := state.KeystoreService().GetHandle(ctx.Context, ctx.Args().First())
	if err != nil {
		return err
	}

	printJSON(newHandleView(*info))
	return nil
}
