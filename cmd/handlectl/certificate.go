package main

import (
	"fmt"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/atbitcoin/handlekeeper/internal/infrastructure/file"
	"github.com/urfave/cli/v2"
)

var importcert = cli.Command{
	Name:      "import-cert",
	Usage:     "import a certificate file for a local handle",
	ArgsUsage: "<certificate.json>",
	Action:    importCertAction,
}

var exportcert = cli.Command{
	Name:      "export-cert",
	Usage:     "export the certificate of a handle",
	ArgsUsage: "<label@space>",
	Flags:     []cli.Flag{outFlag},
	Action:    exportCertAction,
}

var exportrequest = cli.Command{
	Name:      "export-request",
	Usage:     "export the handle and script to request a handle out of band",
	ArgsUsage: "<label@space>",
	Flags:     []cli.Flag{outFlag},
	Action:    exportRequestAction,
}

func importCertAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	buf, _, err := file.Open(ctx.Args().First())
	if err != nil {
		return err
	}
	cert, err := domain.ParseCertificate(buf)
	if err != nil {
		return err
	}

	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := state.KeystoreService().ImportCertificate(ctx.Context, *cert); err != nil {
		return err
	}

	fmt.Printf("Certificate of %s imported\n", cert.Handle)
	return nil
}

func exportCertAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	cert, err := state.KeystoreService().ExportCertificate(
		ctx.Context, ctx.Args().First(),
	)
	if err != nil {
		return err
	}
	return output(ctx.String("out"), cert)
}

func exportRequestAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	req, err := state.KeystoreService().ExportHandleRequest(
		ctx.Context, ctx.Args().First(),
	)
	if err != nil {
		return err
	}
	return output(ctx.String("out"), req)
}
