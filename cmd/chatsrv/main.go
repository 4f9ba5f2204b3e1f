package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/stdr"
	"github.com/pkg/errors"

	"github.com/wtask/chatrelay/internal/chat"
	"github.com/wtask/chatrelay/internal/chat/broker"
)

func main() {
	stdr.SetVerbosity(Config.Verbosity)
	logger := stdr.New(stdlog.New(os.Stdout, "chatsrv:"+Version+" ", stdlog.Ldate|stdlog.Ltime))
	logger.Info("started", "config", Config)

	supervisor, err := chat.NewSupervisor(
		Config.Address,
		chat.WithLogger(logger.WithName("supervisor")),
		chat.WithBackoff(Config.Backoff),
		chat.WithEventQueue(Config.EventQueue),
		chat.WithReadTimeout(Config.ClientIdleTimeout),
		chat.WithMaxLineSize(Config.MaxLineSize),
		chat.WithBrokerBuilder(
			chat.DefaultBroker(
				broker.WithMailboxLimit(Config.MailboxLimit),
				broker.WithWriteTimeout(Config.WriteTimeout),
				broker.WithHistory(Config.ClientHistoryGreets),
			),
		),
	)
	if err != nil {
		logger.Error(err, "invalid config")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("chat relay is launching, press Ctrl-C to stop")
	err = supervisor.Run(ctx)
	var bindErr *chat.BindError
	if errors.As(err, &bindErr) {
		logger.Error(err, "unable to listen TCP")
		stop()
		os.Exit(1)
	}
	logger.Info("chat relay stopped, bye", "generations", supervisor.Generation())
}
