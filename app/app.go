// Package app wires the controller: process image, simulated board, worker
// pool, scheduler, metrics sinks, MQTT gateway and diagnostics API.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kilianp07/stbs/api"
	"github.com/kilianp07/stbs/config"
	"github.com/kilianp07/stbs/core/device"
	"github.com/kilianp07/stbs/core/frame"
	coremetrics "github.com/kilianp07/stbs/core/metrics"
	corertdb "github.com/kilianp07/stbs/core/rtdb"
	"github.com/kilianp07/stbs/core/scheduler"
	"github.com/kilianp07/stbs/core/worker"
	"github.com/kilianp07/stbs/infra/logger"
	"github.com/kilianp07/stbs/infra/metrics"
	"github.com/kilianp07/stbs/infra/mqtt"
	"github.com/kilianp07/stbs/infra/rtdb"
	"github.com/kilianp07/stbs/internal/eventbus"
	"github.com/kilianp07/stbs/simulator"
)

// Service owns every runtime component of the controller.
type Service struct {
	cfg *config.Config
	log logger.Logger
	bus *eventbus.Bus

	sink       *coremetrics.MultiSink
	jitter     *coremetrics.JitterWindow
	store      corertdb.Store
	closeStore func() error
	board      *simulator.Board
	pool       *worker.Pool
	sched      *scheduler.Scheduler[string]
	gateway    *mqtt.Gateway
	api        *api.Server
}

// New creates a Service from the configuration. The schedule table is built
// eagerly so that an infeasible task set fails here.
func New(cfg *config.Config) (svc *Service, err error) {
	if err := logger.Configure(cfg.Logging); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, log: logger.New("service"), bus: eventbus.New()}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	s.jitter = coremetrics.NewJitterWindow(cfg.Metrics.JitterWindow)
	s.sink = coremetrics.NewMultiSink(sink, s.jitter)

	s.store, s.closeStore, err = rtdb.Open(cfg.RTDB)
	if err != nil {
		return nil, fmt.Errorf("rtdb: %w", err)
	}
	s.board = simulator.NewBoard(cfg.Simulator, logger.New("board"))
	s.pool = worker.New(worker.Options{Logger: logger.New("worker"), Recorder: s.sink})

	opts, err := cfg.Scheduler.Options()
	if err != nil {
		return nil, err
	}
	opts.Logger = logger.New("scheduler")
	opts.Sink = s.sink
	opts.Bus = s.bus
	s.sched, err = scheduler.New[string](s.pool, opts)
	if err != nil {
		return nil, err
	}
	tasks := device.NewTasks(s.store, s.board, logger.New("device"))
	if err := device.Install(cfg.Scheduler.Tasks, tasks.Bodies(), s.pool, s.sched); err != nil {
		return nil, err
	}
	if err := s.sched.Build(); err != nil {
		return nil, fmt.Errorf("build schedule: %w", err)
	}

	if cfg.MQTTEnabled() {
		proc := frame.NewProcessor(s.store, logger.New("frame"))
		s.gateway, err = mqtt.NewGateway(cfg.MQTT, proc, logger.New("mqtt_gateway"))
		if err != nil {
			return nil, fmt.Errorf("mqtt gateway: %w", err)
		}
	}
	s.api = api.New(s.sched, logger.New("api"),
		api.WithIO(s.store),
		api.WithJitter(s.jitter),
		api.WithWorkers(s.pool),
	)
	return s, nil
}

// Scheduler exposes the scheduler for inspection.
func (s *Service) Scheduler() *scheduler.Scheduler[string] { return s.sched }

// Pool exposes the worker pool for inspection.
func (s *Service) Pool() *worker.Pool { return s.pool }

// Board exposes the simulated board.
func (s *Service) Board() *simulator.Board { return s.board }

// Handler returns the diagnostics HTTP handler.
func (s *Service) Handler() *api.Server { return s.api }

// Run starts every component and dispatches until ctx is canceled or the
// scheduler stops on its own. It returns the scheduler's error.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.pool.Start(ctx)
	done := []<-chan struct{}{metrics.StartEventCollector(ctx, s.bus, s.sink)}
	if s.gateway != nil {
		done = append(done, s.gateway.ForwardEvents(ctx, s.bus))
	}
	go func() {
		if err := s.board.Run(ctx, nil); err != nil {
			s.log.Errorf("board: %v", err)
		}
	}()
	go func() {
		if err := s.api.ListenAndServe(ctx, s.cfg.API.Address); err != nil {
			s.log.Errorf("api: %v", err)
			cancel()
		}
	}()

	err := s.sched.Start(ctx)
	cancel()
	s.pool.Wait()
	for _, d := range done {
		<-d
	}
	return err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.sched != nil {
		s.sched.Stop()
	}
	if s.gateway != nil {
		s.gateway.Close()
	}
	s.bus.Close()
	var errs []error
	if s.sink != nil {
		errs = append(errs, s.sink.Close())
	}
	if s.closeStore != nil {
		errs = append(errs, s.closeStore())
	}
	return errors.Join(errs...)
}

// PrintTable builds the configured task set without running it and writes
// the operator table to w. Infeasible task sets return the build error.
func PrintTable(cfg *config.Config, w io.Writer) error {
	act := scheduler.ActivatorFunc[string](func(context.Context, string) error { return nil })
	opts, err := cfg.Scheduler.Options()
	if err != nil {
		return err
	}
	sched, err := scheduler.New[string](act, opts)
	if err != nil {
		return err
	}
	for _, t := range cfg.Scheduler.Tasks {
		err := sched.Register(scheduler.Task[string]{
			Handle:   t.Name,
			Name:     t.Name,
			Period:   t.Period,
			Priority: t.Priority,
			Budget:   t.Budget(),
		})
		if err != nil {
			return err
		}
	}
	if err := sched.Build(); err != nil {
		return err
	}
	return sched.Print(w)
}
