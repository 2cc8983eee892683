package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/maruel/subcommands"

	"github.com/farwydi/sferror/resultsdb"
)

func cmdFlush() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "flush -out <dir> [-sink S -dsn D]",
		ShortDesc: "publishes rows left in the queue by an interrupted campaign",
		CommandRun: func() subcommands.CommandRun {
			r := &flushRun{}
			r.registerBaseFlags()
			r.sink.register(&r.Flags)
			r.Flags.StringVar(&r.out, "out", "", "Output directory of the campaign.")
			return r
		},
	}
}

type flushRun struct {
	cmdRun
	sink sinkFlags
	out  string
}

func (r *flushRun) Run(_ subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 0 || r.out == "" {
		return r.done(usageErr("flush needs -out and no arguments"))
	}

	ctx, cancel, err := r.start()
	if err != nil {
		return r.done(err)
	}
	defer cancel()

	return r.done(r.flush(ctx, os.Stdout))
}

func (r *flushRun) flush(ctx context.Context, w io.Writer) error {
	opts, err := r.sink.options(r.out, r.log)
	if err != nil {
		return err
	}
	db, err := resultsdb.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := openSender(db, r.out, 0, r.log)
	if err != nil {
		return err
	}
	pending := s.Pending()
	if err := s.Stop(true); err != nil {
		return err
	}

	fmt.Fprintf(w, "published %s of %s queued rows\n",
		humanize.Comma(s.Sent()), humanize.Comma(int64(pending)))
	if left := int64(pending) - s.Sent(); left > 0 {
		return fmt.Errorf("%d rows still queued", left)
	}
	return nil
}
