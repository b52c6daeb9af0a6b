package main

import (
	"fmt"
	"os"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/atbitcoin/handlekeeper/internal/infrastructure/file"
	"github.com/urfave/cli/v2"
)

var seedFlag = &cli.StringFlag{
	Name:  "seed",
	Usage: "the 12-word seed phrase, read from stdin if omitted",
}

var outFlag = &cli.StringFlag{
	Name:  "out",
	Usage: "the JSON file to write to, printed to stdout if omitted",
}

var genseed = cli.Command{
	Name:   "genseed",
	Usage:  "generate a seed phrase",
	Action: genSeedAction,
}

var initkeystore = cli.Command{
	Name:  "init",
	Usage: "create a new keystore from a seed phrase",
	Flags: []cli.Flag{
		seedFlag,
		&cli.BoolFlag{
			Name:  "new",
			Usage: "generate a fresh seed phrase instead of reading one",
		},
	},
	Action: initKeystoreAction,
}

var restore = cli.Command{
	Name:      "restore",
	Usage:     "restore a keystore backup, the seed phrase must match it",
	ArgsUsage: "<backup.json>",
	Flags:     []cli.Flag{seedFlag},
	Action:    restoreAction,
}

var verifyseed = cli.Command{
	Name:   "verifyseed",
	Usage:  "check a seed phrase against the keystore",
	Flags:  []cli.Flag{seedFlag},
	Action: verifySeedAction,
}

var exportkeystore = cli.Command{
	Name:   "export-keystore",
	Usage:  "export the public keystore backup",
	Flags:  []cli.Flag{outFlag},
	Action: exportKeystoreAction,
}

var changepassword = cli.Command{
	Name:   "changepassword",
	Usage:  "change the password of the secret store",
	Action: changePasswordAction,
}

var teardown = cli.Command{
	Name:  "teardown",
	Usage: "delete the keystore and the stored secret",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "yes",
			Usage: "confirm the deletion",
		},
	},
	Action: teardownAction,
}

func genSeedAction(ctx *cli.Context) error {
	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	seed, err := state.KeystoreService().GenSeed(ctx.Context)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(seed)
	return nil
}

func initKeystoreAction(ctx *cli.Context) error {
	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := state.KeystoreService()

	var seed string
	if ctx.Bool("new") {
		if seed, err = svc.GenSeed(ctx.Context); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stderr, "write down your seed phrase:\n\n%s\n\n", seed)
	} else if seed, err = readMnemonic(ctx.String("seed")); err != nil {
		return err
	}

	if err := state.unlock(); err != nil {
		return err
	}
	if err := svc.Initialize(ctx.Context, seed); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Keystore is initialized")
	return nil
}

func restoreAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	buf, _, err := file.Open(ctx.Args().First())
	if err != nil {
		return err
	}
	backup, err := domain.ParseBackup(buf)
	if err != nil {
		return err
	}

	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	seed, err := readMnemonic(ctx.String("seed"))
	if err != nil {
		return err
	}
	if err := state.unlock(); err != nil {
		return err
	}
	if err := state.KeystoreService().Restore(ctx.Context, seed, *backup); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Keystore is restored with %d handles\n", len(backup.Handles))
	return nil
}

func verifySeedAction(ctx *cli.Context) error {
	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	seed, err := readMnemonic(ctx.String("seed"))
	if err != nil {
		return err
	}
	if err := state.KeystoreService().VerifySecret(ctx.Context, seed); err != nil {
		return err
	}

	fmt.Println("Seed phrase matches the keystore")
	return nil
}

func exportKeystoreAction(ctx *cli.Context) error {
	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	backup, err := state.KeystoreService().ExportBackup(ctx.Context)
	if err != nil {
		return err
	}
	return output(ctx.String("out"), backup)
}

func changePasswordAction(ctx *cli.Context) error {
	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	current, err := readPassword("current password: ")
	if err != nil {
		return err
	}
	if err := state.secrets.CreateUnlock(&current); err != nil {
		return err
	}
	next, err := readPassword("new password: ")
	if err != nil {
		return err
	}
	if err := state.secrets.ChangePassword(current, next); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Password changed")
	return nil
}

func teardownAction(ctx *cli.Context) error {
	if !ctx.Bool("yes") {
		return fmt.Errorf("this deletes the keystore for good, run again with --yes")
	}

	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := state.KeystoreService().Teardown(ctx.Context); err != nil {
		return err
	}

	fmt.Println("Keystore deleted")
	return nil
}

// output writes data to path as JSON, or prints it if path is empty.
func output(path string, data interface{}) error {
	if path == "" {
		printJSON(data)
		return nil
	}
	if err := file.Save(path, data); err != nil {
		return err
	}
	fmt.Printf("Written to %s\n", path)
	return nil
}
