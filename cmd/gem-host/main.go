// Command gem-host runs a minimal GEM host endpoint: it actively connects
// to an equipment's HSMS passive port, completes the communication
// handshake, and logs inbound alarms, collection events, and terminal
// messages until interrupted. With --go-online set, it also issues a sample
// go_online request once communication is established, to exercise the host
// convenience API.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/wolimst/gosecs/internal/gemlog"
	"github.com/wolimst/gosecs/pkg/gem"
	"github.com/wolimst/gosecs/pkg/hsms"
	"github.com/wolimst/gosecs/pkg/secsvar"
)

func main() {
	app := &cli.App{
		Name:  "gem-host",
		Usage: "run a GEM/HSMS host endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:5000", Usage: "equipment address to dial"},
			&cli.IntFlag{Name: "session-id", Value: 0, Usage: "HSMS session id"},
			&cli.StringFlag{Name: "model", Value: "GOSECS-HOST", Usage: "host model name (MDLN)"},
			&cli.StringFlag{Name: "rev", Value: "1.0", Usage: "host software revision (SOFTREV)"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn, error"},
			&cli.BoolFlag{Name: "go-online", Value: false, Usage: "issue go_online once communicating"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type loggingSink struct {
	log gemlog.Logger
}

func (s loggingSink) AlarmReceived(alid int, alcd byte, text string) {
	s.log.Warnf("gem-host: alarm %d code=%#x %q", alid, alcd, text)
}

func (s loggingSink) CollectionEventReceived(ceid int, reports map[int][]secsvar.Variable) {
	s.log.Infof("gem-host: collection event %d, %d report(s)", ceid, len(reports))
}

func (s loggingSink) TerminalReceived(tid byte, text string) {
	s.log.Infof("gem-host: terminal %d: %q", tid, text)
}

func run(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("gem-host: %w", err)
	}
	logger := gemlog.New(os.Stderr, level)

	cfg := hsms.DefaultConfig()
	if err := cfg.Valid(); err != nil {
		return fmt.Errorf("gem-host: %w", err)
	}

	session := hsms.NewSession(uint16(c.Int("session-id")), hsms.RoleActive, nil, cfg, logger)
	conn := hsms.NewActiveConnection(c.String("addr"), cfg, session, logger)
	session.SetConnection(conn)

	comm := gem.NewCommunication(session, gem.Identity{
		ModelName:   c.String("model"),
		SoftwareRev: c.String("rev"),
	}, cfg, logger)

	host := gem.NewHost(session, loggingSink{log: logger}, logger)

	comm.OnCommunicating(func() {
		logger.Infof("gem-host: communicating")
		if c.Bool("go-online") {
			go func() {
				ack, err := host.GoOnline()
				if err != nil {
					logger.Warnf("gem-host: go_online failed: %v", err)
					return
				}
				logger.Infof("gem-host: go_online ack=%d", ack)
			}()
		}
	})
	comm.OnNotCommunicating(func() { logger.Infof("gem-host: not communicating") })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.Enable()
	session.Start(ctx)
	if err := comm.Enable(ctx); err != nil {
		return fmt.Errorf("gem-host: %w", err)
	}

	logger.Infof("gem-host: dialing %s", c.String("addr"))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Infof("gem-host: shutting down")
	session.Stop()
	conn.Disable()
	time.Sleep(100 * time.Millisecond)
	return nil
}
