// Command gem-equipment runs a GEM equipment endpoint: it listens for an
// HSMS active peer (typically a host/MES), drives the communication and
// control state machines, and serves the built-in status variables,
// equipment constants, and collection events until interrupted.
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
)

func main() {
	app := &cli.App{
		Name:  "gem-equipment",
		Usage: "run a GEM/HSMS equipment endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "0.0.0.0:5000", Usage: "address to listen on"},
			&cli.IntFlag{Name: "session-id", Value: 0, Usage: "HSMS session id"},
			&cli.StringFlag{Name: "model", Value: "GOSECS", Usage: "equipment model name (MDLN)"},
			&cli.StringFlag{Name: "rev", Value: "1.0", Usage: "equipment software revision (SOFTREV)"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn, error"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("gem-equipment: %w", err)
	}
	logger := gemlog.New(os.Stderr, level)

	cfg := hsms.DefaultConfig()
	if err := cfg.Valid(); err != nil {
		return fmt.Errorf("gem-equipment: %w", err)
	}

	session := hsms.NewSession(uint16(c.Int("session-id")), hsms.RolePassive, nil, cfg, logger)
	conn := hsms.NewPassiveConnection(c.String("addr"), cfg, session, logger)
	session.SetConnection(conn)

	comm := gem.NewCommunication(session, gem.Identity{
		ModelName:   c.String("model"),
		SoftwareRev: c.String("rev"),
	}, cfg, logger)

	equipment := gem.NewEquipment(session, comm, cfg, logger)

	comm.OnCommunicating(func() { logger.Infof("gem-equipment: communicating") })
	comm.OnNotCommunicating(func() { logger.Infof("gem-equipment: not communicating") })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.Enable()
	session.Start(ctx)
	if err := comm.Enable(ctx); err != nil {
		return fmt.Errorf("gem-equipment: %w", err)
	}
	if err := equipment.Start(); err != nil {
		return fmt.Errorf("gem-equipment: %w", err)
	}

	logger.Infof("gem-equipment: listening on %s", c.String("addr"))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Infof("gem-equipment: shutting down")
	session.Stop()
	conn.Disable()
	time.Sleep(100 * time.Millisecond)
	return nil
}
