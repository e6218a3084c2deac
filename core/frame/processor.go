package frame

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/stbs/core/logger"
	"github.com/kilianp07/stbs/core/rtdb"
)

var framesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "stbs_frames_total",
	Help: "Processed command frames by command and acknowledgement code",
}, []string{"command", "result"})

func init() {
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers frame metrics on reg, or on
// prometheus.DefaultRegisterer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(framesTotal)
}

// Processor applies command frames to the process image.
type Processor struct {
	store rtdb.Store
	log   logger.Logger
}

// NewProcessor returns a Processor backed by store.
func NewProcessor(store rtdb.Store, log logger.Logger) *Processor {
	return &Processor{store: store, log: logger.OrNop(log)}
}

// Process handles one raw frame and returns the reply frame. Every input
// gets exactly one reply.
func (p *Processor) Process(raw []byte) []byte {
	f, err := Parse(raw)
	switch {
	case errors.Is(err, ErrChecksum):
		p.log.Warnf("frame %q: %v", raw, err)
		return p.ack("?", AckChecksum)
	case err != nil:
		p.log.Warnf("frame %q: %v", raw, err)
		return p.ack("?", AckStructure)
	}
	cmd := string(f.Command)

	switch f.Command {
	case 'O':
		if len(f.Payload) != 2 || f.Payload[0] < '1' || f.Payload[0] > '4' || !isBit(f.Payload[1]) {
			return p.ack(cmd, AckStructure)
		}
		if err := p.store.SetLED(int(f.Payload[0]-'1'), int(f.Payload[1]-'0')); err != nil {
			p.log.Errorf("set led: %v", err)
			return p.ack(cmd, AckStructure)
		}
		return p.ack(cmd, AckOK)

	case 'A':
		if len(f.Payload) != rtdb.Pins {
			return p.ack(cmd, AckStructure)
		}
		var leds [rtdb.Pins]int
		for i, b := range f.Payload {
			if !isBit(b) {
				return p.ack(cmd, AckStructure)
			}
			leds[i] = int(b - '0')
		}
		if err := p.store.SetLEDs(leds); err != nil {
			p.log.Errorf("set leds: %v", err)
			return p.ack(cmd, AckStructure)
		}
		return p.ack(cmd, AckOK)

	case 'I', 'E':
		snap, err := p.store.Snapshot()
		if err != nil {
			p.log.Errorf("snapshot: %v", err)
			return p.ack(cmd, AckStructure)
		}
		framesTotal.WithLabelValues(cmd, "reply").Inc()
		if f.Command == 'I' {
			return pinsFrame(cmdInputs, snap.Buttons)
		}
		return pinsFrame(cmdOutputs, snap.LEDs)

	case 'C':
		if err := p.store.Corrupt(0); err != nil {
			p.log.Errorf("corrupt: %v", err)
			return p.ack(cmd, AckStructure)
		}
		p.log.Warnf("fault injected: led 1 corrupted")
		return p.ack(cmd, AckOK)
	}
	return p.ack(cmd, AckUnknown)
}

func (p *Processor) ack(cmd string, code AckCode) []byte {
	framesTotal.WithLabelValues(cmd, code.String()).Inc()
	return Ack(code)
}

// pinsFrame encodes a pin reply. Values outside {0,1} are sent as 'X'.
func pinsFrame(cmd byte, pins [rtdb.Pins]int) []byte {
	body := []byte{ReplyDevice, cmd}
	for _, v := range pins {
		if rtdb.Valid(v) {
			body = append(body, byte('0'+v))
		} else {
			body = append(body, 'X')
		}
	}
	return Encode(body)
}

func isBit(b byte) bool { return b == '0' || b == '1' }
