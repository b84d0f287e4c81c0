// Command flashdeck is a spaced-repetition flashcard trainer.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/conorfennell/flashdeck/internal/config"
	"github.com/conorfennell/flashdeck/internal/logging"
)

const usage = `usage: flashdeck [global flags] <command> [args]

commands:
  deck add <name> [--description d]
  deck list
  deck select <deck>
  deck edit <deck> [--name n] [--description d] [--color c]
  deck rm <deck>
  card add <front> <back> [--deck d] [--front-lang l] [--back-lang l]
  card edit <id> <front> <back> [--front-lang l] [--back-lang l]
  card rm <id>
  card list [--deck d]
  add-md <deck> <file.md>
  review [--deck d] [--cram]
  stats
  export [--deck d] [--out file]
  import <file|url|git-url> [--strategy skip|rename|replace]
  sync

global flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "flashdeck:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := pflag.NewFlagSet("flashdeck", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	config.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return pflag.ErrHelp
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log)

	a, err := openApp(ctx, cfg, logger, stdin, stdout)
	if err != nil {
		return err
	}
	cmdErr := a.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
	closeErr := a.close(ctx)
	return errors.Join(cmdErr, closeErr)
}
