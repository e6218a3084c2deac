package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/stbs/core/metrics"
	"github.com/kilianp07/stbs/infra/logger"
)

// InfluxConfig configures the InfluxDB sink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	// BatchSize and FlushInterval tune the asynchronous writer.
	BatchSize     uint          `json:"batch_size"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// InfluxSink writes samples to InfluxDB. Tick samples arrive at the tick
// rate, so points are batched by the non-blocking write API and flushed on
// Close.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	opts := influxdb2.DefaultOptions().
		SetHTTPClient(&http.Client{Timeout: 5 * time.Second}).
		SetPrecision(time.Microsecond)
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval / time.Millisecond))
	}
	client := influxdb2.NewClientWithOptions(base, cfg.Token, opts)
	s := &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
	go s.drainErrors()
	return s
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		_ = sink.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// drainErrors logs asynchronous write failures until the client is closed.
func (s *InfluxSink) drainErrors() {
	for err := range s.writeAPI.Errors() {
		s.log.Errorf("influx write: %v", err)
	}
}

// RecordTick writes one tick_sample point.
func (s *InfluxSink) RecordTick(t coremetrics.TickSample) error {
	p := write.NewPointWithMeasurement("tick_sample").
		AddTag("run_id", t.RunID).
		AddTag("tick", strconv.Itoa(t.Tick)).
		AddTag("overrun", strconv.FormatBool(t.Overrun)).
		AddField("traversal", int64(t.Traversal)).
		AddField("activations", t.Activations).
		AddField("failed", t.Failed).
		AddField("lateness_us", t.Lateness.Microseconds()).
		AddField("busy_us", t.Busy.Microseconds()).
		AddField("slack_us", t.Slack.Microseconds()).
		SetTime(t.Time)
	s.writeAPI.WritePoint(p)
	return nil
}

// RecordBuild writes one table_build point.
func (s *InfluxSink) RecordBuild(ev coremetrics.BuildEvent) error {
	p := write.NewPointWithMeasurement("table_build").
		AddTag("feasible", strconv.FormatBool(ev.Feasible)).
		AddField("tasks", ev.Tasks).
		AddField("macrocycle", ev.Macrocycle).
		AddField("utilisation", ev.Utilisation).
		AddField("took_us", ev.Took.Microseconds()).
		SetTime(ev.Time)
	s.writeAPI.WritePoint(p)
	return nil
}

// RecordActivation writes one task_exec point.
func (s *InfluxSink) RecordActivation(a coremetrics.ActivationSample) error {
	p := write.NewPointWithMeasurement("task_exec").
		AddTag("task", a.Task).
		AddTag("over_budget", strconv.FormatBool(a.OverBudget)).
		AddField("exec_us", a.Exec.Microseconds()).
		AddField("budget_us", a.Budget.Microseconds())
	if a.Err != nil {
		p = p.AddField("error", a.Err.Error())
	}
	s.writeAPI.WritePoint(p.SetTime(a.Time))
	return nil
}

// RecordState writes one scheduler_state point.
func (s *InfluxSink) RecordState(c coremetrics.StateChange) error {
	p := write.NewPointWithMeasurement("scheduler_state").
		AddTag("run_id", c.RunID).
		AddField("from", c.From).
		AddField("to", c.To).
		SetTime(c.Time)
	s.writeAPI.WritePoint(p)
	return nil
}

// Close flushes pending points and releases the client.
func (s *InfluxSink) Close() error {
	s.writeAPI.Flush()
	s.client.Close()
	return nil
}
