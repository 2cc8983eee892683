package main

import (
	"fmt"
	"io"
	"os"

	"github.com/maruel/subcommands"

	"github.com/farwydi/sferror/opsim"
)

func cmdRuns() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "runs -dir <opsim dir>",
		ShortDesc: "lists the OpSim runs of a database directory",
		CommandRun: func() subcommands.CommandRun {
			r := &runsRun{}
			r.registerBaseFlags()
			r.Flags.StringVar(&r.dir, "dir", "", "Directory holding the OpSim *.db files.")
			return r
		},
	}
}

type runsRun struct {
	cmdRun
	dir string
}

func (r *runsRun) Run(_ subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 0 || r.dir == "" {
		return r.done(usageErr("runs needs -dir and no arguments"))
	}
	return r.done(listRuns(os.Stdout, r.dir))
}

func listRuns(w io.Writer, dir string) error {
	runs, err := opsim.ListRuns(dir)
	if err != nil {
		return err
	}
	for _, run := range runs {
		fmt.Fprintln(w, run)
	}
	return nil
}
