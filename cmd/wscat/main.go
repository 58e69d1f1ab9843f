// Command wscat connects to a WebSocket server, sends every line read
// from stdin as a text message and prints everything it receives.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/sloghuman"
	"golang.org/x/time/rate"

	"github.com/orexfx/websocket"
)

func main() {
	log.SetFlags(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
}

type stringsFlag []string

func (f *stringsFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *stringsFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

// run connects to the URL in args and pipes stdin to it until the
// connection ends or ctx is canceled.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("wscat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var subprotocols stringsFlag
	fs.Var(&subprotocols, "subprotocol", "subprotocol to request, may be repeated")
	insecure := fs.Bool("insecure", false, "accept self signed certificates")
	ping := fs.Duration("ping", 0, "interval between pings, 0 disables them")
	perSecond := fs.Float64("rate", 0, "max messages sent per second, 0 is unlimited")
	verbose := fs.Bool("v", false, "log connection details")
	err := fs.Parse(args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: wscat [flags] ws://host/path")
	}

	logger := slog.Make(sloghuman.Sink(stderr)).Leveled(slog.LevelWarn)
	if *verbose {
		logger = logger.Leveled(slog.LevelDebug)
	}

	p := newPrinter(stdout)
	c, err := websocket.Open(ctx, &websocket.Options{
		URL:                         fs.Arg(0),
		Subprotocols:                subprotocols,
		AllowSelfSignedCertificates: *insecure,
		PingInterval:                *ping,
		Logger:                      logger,
		Sink:                        p,
	})
	if err != nil {
		return err
	}
	defer c.CloseNow()

	select {
	case <-p.opened:
	case <-c.Done():
		return p.err()
	}

	limit := rate.Inf
	if *perSecond > 0 {
		limit = rate.Limit(*perSecond)
	}
	lim := rate.NewLimiter(limit, 1)

	lines := make(chan string)
	go func() {
		defer close(lines)
		s := bufio.NewScanner(stdin)
		for s.Scan() {
			select {
			case lines <- s.Text():
			case <-c.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			<-c.Done()
			return p.err()
		case <-c.Done():
			return p.err()
		case line, ok := <-lines:
			if !ok {
				// Keep printing until the server or an interrupt ends the connection.
				lines = nil
				continue
			}
			err = lim.Wait(ctx)
			if err != nil {
				continue
			}
			err = c.SendText(line)
			if err != nil {
				return fmt.Errorf("failed to send line: %w", err)
			}
		}
	}
}
