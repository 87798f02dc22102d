package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"finplan/internal/amqp"
	"finplan/internal/cli"
	"finplan/internal/events"
	"finplan/internal/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger, cfg := cli.Bootstrap()
	ctx := context.Background()

	res, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to open store", log.FieldError, err)
		return 1
	}
	if res.Cleanup != nil {
		defer res.Cleanup()
	}

	bus := events.NewBus()
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change forwarding", log.FieldError, err)
		} else {
			defer client.Close()
			bus.SetForwarder(client)
		}
	}

	a := newApp(res.Store, cfg, bus, os.Stdout, nil)
	defer a.close()

	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		logger.Error("Command failed", log.FieldError, err)
		return 1
	}
	return 0
}
