package metrics

import "errors"

// MultiSink fans samples out to multiple sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTick forwards the sample to every sink. All sinks are called; the
// errors are joined.
func (m *MultiSink) RecordTick(s TickSample) error {
	var errs []error
	for _, sk := range m.Sinks {
		if err := sk.RecordTick(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordBuild forwards build events to sinks implementing BuildRecorder.
func (m *MultiSink) RecordBuild(ev BuildEvent) error {
	var errs []error
	for _, sk := range m.Sinks {
		if rec, ok := sk.(BuildRecorder); ok {
			if err := rec.RecordBuild(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordActivation forwards executions to sinks implementing ActivationRecorder.
func (m *MultiSink) RecordActivation(a ActivationSample) error {
	var errs []error
	for _, sk := range m.Sinks {
		if rec, ok := sk.(ActivationRecorder); ok {
			if err := rec.RecordActivation(a); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordState forwards transitions to sinks implementing StateRecorder.
func (m *MultiSink) RecordState(c StateChange) error {
	var errs []error
	for _, sk := range m.Sinks {
		if rec, ok := sk.(StateRecorder); ok {
			if err := rec.RecordState(c); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink implementing Closer.
func (m *MultiSink) Close() error {
	var errs []error
	for _, sk := range m.Sinks {
		if c, ok := sk.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
