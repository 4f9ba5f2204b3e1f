package chat

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/looplab/fsm"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/wtask/chatrelay/internal/chat/broker"
)

// Supervisor states.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StateBackoff = "backoff"
	StateStopped = "stopped"
)

const (
	eventStart   = "start"
	eventFail    = "fail"
	eventRestart = "restart"
	eventStop    = "stop"
)

// Supervisor - keeps the relay running. Every generation gets a fresh Broker, event channel and Listener.
// When a generation ends, the next one starts after a delay, doubled every time.
type Supervisor struct {
	address     string
	logger      logr.Logger
	backoff     time.Duration
	eventQueue  int
	readTimeout time.Duration
	maxLineSize int
	buildBroker BrokerBuilder
	onListen    func(generation int, addr net.Addr)
	after       func(time.Duration) <-chan time.Time

	state      *fsm.FSM
	generation int32
}

// NewSupervisor - builds supervisor of the relay listening address.
func NewSupervisor(address string, options ...Option) (*Supervisor, error) {
	s := &Supervisor{
		address:     address,
		logger:      logr.Discard(),
		backoff:     time.Second,
		eventQueue:  1024,
		buildBroker: DefaultBroker(),
		after:       time.After,
	}
	if err := setup(s, options...); err != nil {
		return nil, err
	}
	s.state = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle}, Dst: StateRunning},
			{Name: eventFail, Src: []string{StateRunning}, Dst: StateBackoff},
			{Name: eventRestart, Src: []string{StateBackoff}, Dst: StateRunning},
			{Name: eventStop, Src: []string{StateRunning, StateBackoff}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.logger.V(1).Info("state changed", "from", e.Src, "to", e.Dst, "generation", s.Generation())
			},
		},
	)
	return s, nil
}

// State - returns current lifecycle state, one of State* constants.
func (s *Supervisor) State() string {
	return s.state.Current()
}

// Generation - returns number of the current or the last generation, zero before Run.
func (s *Supervisor) Generation() int {
	return int(atomic.LoadInt32(&s.generation))
}

// Run - runs generations until ctx is done, then returns ctx.Err().
// Bind failure of the first generation is returned as is, because the address is likely wrong.
// Run may be called once.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.transit(eventStart); err != nil {
		return errors.Wrap(err, "chat.Supervisor: can't run")
	}
	defer s.transit(eventStop)

	delay := s.backoff
	for generation := 1; ; generation++ {
		atomic.StoreInt32(&s.generation, int32(generation))
		err := s.runGeneration(ctx, generation)
		if ctx.Err() != nil {
			s.logger.Info("stopped", "generation", generation)
			return ctx.Err()
		}

		var bindErr *BindError
		if generation == 1 && errors.As(err, &bindErr) {
			s.logger.Error(bindErr, "first generation can't listen, giving up")
			return bindErr
		}
		if err != nil {
			s.logger.Error(err, "generation failed", "generation", generation, "restart_in", delay.String())
		} else {
			s.logger.Info("generation ended", "generation", generation, "restart_in", delay.String())
		}

		s.transit(eventFail)
		select {
		case <-s.after(delay):
		case <-ctx.Done():
			s.logger.Info("stopped", "generation", generation)
			return ctx.Err()
		}
		delay *= 2
		s.transit(eventRestart)
	}
}

// runGeneration - runs Broker and Listener until both are done.
// When one of them fails, the other is stopped too.
func (s *Supervisor) runGeneration(ctx context.Context, generation int) error {
	log := s.logger.WithValues("generation", generation)
	handler, err := s.buildBroker(log.WithName("broker"))
	if err != nil {
		return &GenerationError{Generation: generation, Broker: errors.Wrap(err, "can't build")}
	}

	events := make(chan broker.Event, s.eventQueue)
	listener := &Listener{
		Address:     s.address,
		ReadTimeout: s.readTimeout,
		MaxLineSize: s.maxLineSize,
		Logger:      log.WithName("listener"),
		OnListen: func(addr net.Addr) {
			if s.onListen != nil {
				s.onListen(generation, addr)
			}
		},
	}

	log.Info("generation started")
	group, groupCtx := errgroup.WithContext(ctx)
	// the listener stops as soon as the broker does, even if the broker returns nil
	listenerCtx, stopListener := context.WithCancel(groupCtx)
	defer stopListener()
	var brokerErr, listenerErr error
	group.Go(func() error {
		defer stopListener()
		brokerErr = guard("broker", func() error {
			return handler.Run(events)
		})
		return brokerErr
	})
	group.Go(func() error {
		listenerErr = guard("listener", func() error {
			return listener.Run(listenerCtx, events)
		})
		return listenerErr
	})
	group.Wait()

	if brokerErr != nil {
		log.Error(brokerErr, "broker failed")
	}
	if listenerErr != nil {
		log.Error(listenerErr, "listener failed")
	}
	if brokerErr == nil && listenerErr == nil {
		return nil
	}
	return &GenerationError{
		Generation: generation,
		Broker:     brokerErr,
		Listener:   listenerErr,
	}
}

func (s *Supervisor) transit(event string) error {
	return s.state.Event(context.Background(), event)
}

// guard - turns panic of run into error.
func guard(component string, run func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &panicError{component: component, value: v}
		}
	}()
	return run()
}
