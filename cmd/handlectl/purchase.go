package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

var noopPurchaseFlag = &cli.BoolFlag{
	Name:  "noop-purchase",
	Usage: "pay with the test purchase backend, only accepted by test registries",
}

var suggest = cli.Command{
	Name:      "suggest",
	Usage:     "list the handles proposed by the registry for a query",
	ArgsUsage: "<query>",
	Action:    suggestAction,
}

var reserve = cli.Command{
	Name:      "reserve",
	Usage:     "reserve a handle for the key derived for it",
	ArgsUsage: "<label@space>",
	Action:    reserveAction,
}

var buy = cli.Command{
	Name:      "buy",
	Usage:     "reserve, pay and claim a handle, then wait for its certificate",
	ArgsUsage: "<label@space>",
	Flags:     []cli.Flag{noopPurchaseFlag},
	Action:    buyAction,
}

var claim = cli.Command{
	Name:      "claim",
	Usage:     "claim a reserved handle with a purchase token",
	ArgsUsage: "<label@space> <purchase-token>",
	Action:    claimAction,
}

func suggestAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	printJSON(state.PurchaseService().Suggest(ctx.Context, ctx.Args().First()))
	return nil
}

func reserveAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := state.PurchaseService().Reserve(ctx.Context, ctx.Args().First())
	if err != nil {
		return err
	}

	printJSON(map[string]interface{}{
		"product_id": res.ProductID,
		"deadline":   res.Deadline.UTC().Format(time.RFC3339),
		"outcome":    newOutcomeView(res.Outcome),
	})
	return nil
}

func buyAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	outcome, err := state.PurchaseService().Buy(
		ctx.Context, ctx.Args().First(), printOutcome,
	)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("%s is %s\n", outcome.Handle, outcome.Verdict)
	return nil
}

func claimAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	outcome, err := state.PurchaseService().Claim(
		ctx.Context, ctx.Args().Get(0), ctx.Args().Get(1),
	)
	if err != nil {
		return err
	}

	printOutcome(*outcome)
	return nil
}
