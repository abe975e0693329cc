// Package pipeline is the RX thread: receive, decode, aggregate, commit,
// and drain the command queue into the TX half (§4.5).
package pipeline

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ctrlcan/arm6/can"
	"github.com/ctrlcan/arm6/frame"
	"github.com/ctrlcan/arm6/state"
)

// Config tunes the aggregation windows and loop cadence. Zero-value Config
// is invalid; use DefaultConfig.
type Config struct {
	ReceiveTimeout      time.Duration
	FrameGroupTimeout   time.Duration // ~10ms, §4.5 frame-commit groups
	DynamicGroupTimeout time.Duration // ~1.2ms, §4.5 buffered-commit group
	CommandDrainLimit   int           // max try_recv per iteration, step 4
}

func DefaultConfig() Config {
	return Config{
		ReceiveTimeout:      50 * time.Millisecond,
		FrameGroupTimeout:   10 * time.Millisecond,
		DynamicGroupTimeout: 1200 * time.Microsecond,
		CommandDrainLimit:   8,
	}
}

// Pipeline owns the frame-assembly state. It is run exclusively by one
// goroutine (the RX thread); the Context it publishes into is the only
// part of it visible to other goroutines.
type Pipeline struct {
	cfg Config
	ctx *state.Context
	rx  can.RxHalf
	tx  can.TxHalf
	cmd <-chan frame.Frame

	fps *FpsCounters

	posGroup  frameCommitGroup
	poseGroup frameCommitGroup
	dynGroup  bufferedCommitGroup

	loggedUnknownIDs map[uint32]bool
}

func New(ctx *state.Context, rx can.RxHalf, tx can.TxHalf, cmd <-chan frame.Frame, cfg Config) *Pipeline {
	return &Pipeline{
		cfg: cfg, ctx: ctx, rx: rx, tx: tx, cmd: cmd,
		fps:              newFpsCounters(),
		loggedUnknownIDs: make(map[uint32]bool),
	}
}

// Run is the infinite RX loop described in §4.5. It returns only when
// stop is closed; the caller is expected to run it on a dedicated
// goroutine with no other suspension points than Receive.
func (p *Pipeline) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		fr, err := p.rx.Receive(p.cfg.ReceiveTimeout)
		if err != nil {
			if err == can.ErrTimeout {
				p.windowMaintenance()
				continue
			}
			log.WithError(err).Warn("pipeline: device error on receive")
			time.Sleep(5 * time.Millisecond)
			continue
		}

		decoded, err := frame.TryDecode(fr)
		if err != nil {
			if err == frame.ErrUnknownID && !p.loggedUnknownIDs[fr.ID] {
				p.loggedUnknownIDs[fr.ID] = true
				log.WithField("id", fr.ID).Warn("pipeline: unknown CAN ID, dropping")
			} else {
				log.WithError(err).Debug("pipeline: decode error, dropping frame")
			}
			continue
		}

		p.dispatch(decoded, fr)
		p.checkDynamicTimeout(sysTimeUs())
		p.drainCommands()
	}
}

func (p *Pipeline) drainCommands() {
	for i := 0; i < p.cfg.CommandDrainLimit; i++ {
		select {
		case fr, ok := <-p.cmd:
			if !ok {
				return
			}
			if err := p.tx.Send(fr); err != nil {
				log.WithError(err).Warn("pipeline: tx send failed")
			}
		default:
			return
		}
	}
}

func sysTimeUs() uint64 { return uint64(time.Now().UnixMicro()) }
