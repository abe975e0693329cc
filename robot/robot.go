// Package robot is the public library surface: Robot::new from §4.6,
// running the pipeline goroutine over a split adapter and exposing non-blocking
// state getters, bounded command send, and graceful shutdown.
package robot

import (
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ctrlcan/arm6/can"
	"github.com/ctrlcan/arm6/frame"
	"github.com/ctrlcan/arm6/pipeline"
	"github.com/ctrlcan/arm6/state"
)

// lifecycle states, per spec.md §4.6: Constructed -> Running ->
// (ShutdownRequested) -> Stopped.
const (
	stateConstructed int32 = iota
	stateRunning
	stateShutdownRequested
	stateStopped
)

// Config tunes command-channel capacity and the pipeline's aggregation
// windows. The zero value is invalid; use DefaultConfig.
type Config struct {
	CommandBufferSize int
	Pipeline          pipeline.Config
}

func DefaultConfig() Config {
	return Config{
		CommandBufferSize: 10,
		Pipeline:          pipeline.DefaultConfig(),
	}
}

// Robot owns a split CAN adapter and the one pipeline goroutine that drives
// both halves. A
// Robot is safe for concurrent use by multiple caller goroutines; it is not
// itself a CAN adapter.
type Robot struct {
	ctx *state.Context
	fps *pipeline.Pipeline

	cmdCh  chan frame.Frame
	rx     can.RxHalf
	tx     can.TxHalf
	stopRx chan struct{}

	wg    sync.WaitGroup
	state atomic.Int32
}

// New consumes adapter, splits it, starts one goroutine running the
// pipeline, and returns a handle owning the command-channel sender. That
// goroutine receives and dispatches frames and, after each dispatched frame,
// drains the command channel into the TX half; there is no separate TX
// goroutine, so queued commands go out only while frames are arriving.
// It never blocks past
// the adapter's own Split/construction cost; use WaitForFeedback afterward
// if the caller needs to know the link is actually producing frames before
// acting on state.
func New(adapter can.Adapter, cfg Config) (*Robot, error) {
	if cfg.CommandBufferSize <= 0 {
		cfg.CommandBufferSize = 10
	}

	ctx := state.NewContext()
	rx, tx := adapter.Split()
	cmdCh := make(chan frame.Frame, cfg.CommandBufferSize)
	stopRx := make(chan struct{})

	p := pipeline.New(ctx, rx, tx, cmdCh, cfg.Pipeline)

	r := &Robot{
		ctx:    ctx,
		fps:    p,
		cmdCh:  cmdCh,
		rx:     rx,
		tx:     tx,
		stopRx: stopRx,
	}
	r.state.Store(stateRunning)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.WithField("panic", rec).Error("robot: rx thread panicked")
			}
		}()
		p.Run(stopRx)
	}()

	return r, nil
}

func (r *Robot) GetJointPosition() state.JointPosition { return r.ctx.JointPosition() }
func (r *Robot) GetEndPose() state.EndPose             { return r.ctx.EndPose() }
func (r *Robot) GetJointDynamic() state.JointDynamic   { return r.ctx.JointDynamic() }
func (r *Robot) GetRobotControl() state.RobotControl   { return r.ctx.RobotControl() }
func (r *Robot) GetGripper() state.Gripper             { return r.ctx.Gripper() }
func (r *Robot) GetJointDriverLowSpeed() state.JointDriverLowSpeed {
	return r.ctx.JointDriverLowSpeed()
}

// CaptureMotionSnapshot performs the two back-to-back non-blocking reads of
// §3.4: logically, not physically, atomic.
func (r *Robot) CaptureMotionSnapshot() state.MotionSnapshot { return r.ctx.MotionSnapshot() }

// GetCollisionProtection and its siblings take a short reader-lock, per
// §4.6; they can momentarily fail to observe a concurrent RX-thread write
// only by seeing the pre- or post-write value, never a mix.
func (r *Robot) GetCollisionProtection() (state.CollisionProtection, error) {
	return wrapPoisoned(r.ctx.CollisionProtection())
}
func (r *Robot) GetJointLimitConfig() (state.JointLimitConfig, error) {
	return wrapPoisoned(r.ctx.JointLimitConfig())
}
func (r *Robot) GetJointAccelConfig() (state.JointAccelConfig, error) {
	return wrapPoisoned(r.ctx.JointAccelConfig())
}
func (r *Robot) GetEndLimitConfig() (state.EndLimitConfig, error) {
	return wrapPoisoned(r.ctx.EndLimitConfig())
}

// wrapPoisoned translates state.ErrPoisoned into robot.ErrPoisonedLock so
// callers switch on robot-package sentinels only, per §7's "Poisoned locks
// ... propagate as PoisonedLock on the reader path."
func wrapPoisoned[T any](v T, err error) (T, error) {
	if err == state.ErrPoisoned {
		return v, ErrPoisonedLock
	}
	return v, err
}

// SendFrame is the non-blocking try_send of §4.6 (bounded capacity,
// default 10): it returns ErrFull under backpressure rather than blocking
// the caller, and ErrClosed once the Robot has been shut down.
func (r *Robot) SendFrame(fr frame.Frame) error {
	if r.state.Load() != stateRunning {
		return ErrClosed
	}
	select {
	case r.cmdCh <- fr:
		return nil
	default:
		return ErrFull
	}
}

// SendFrameBlocking is for non-realtime callers only; it is not used on the
// control loop's hot path and is documented as discouraged there (§4.6).
func (r *Robot) SendFrameBlocking(fr frame.Frame, timeout time.Duration) error {
	if r.state.Load() != stateRunning {
		return ErrClosed
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r.cmdCh <- fr:
		return nil
	case <-timer.C:
		return ErrTimeout
	}
}

// WaitForFeedback polls GetJointPosition().HwTsUs != 0 at 10ms intervals,
// per §4.6: used once after construction so callers don't act on
// zero-initialised state before the first frame has landed.
func (r *Robot) WaitForFeedback(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if r.GetJointPosition().HwTsUs != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		<-ticker.C
	}
}

func (r *Robot) GetFps() pipeline.FpsReport { return r.fps.Calculate() }
func (r *Robot) ResetFpsStats()             { r.fps.Reset() }

// Close closes the command channel, signals the pipeline goroutine to stop,
// and joins it. Getters continue to return the last-published snapshots even
// after Close returns, per §4.6's Stopped-state guarantee.
func (r *Robot) Close() error {
	if !r.state.CompareAndSwap(stateRunning, stateShutdownRequested) {
		return nil
	}
	close(r.stopRx)
	close(r.cmdCh)
	r.wg.Wait()

	var txErr, rxErr error
	if r.tx != nil {
		txErr = r.tx.Close()
	}
	if r.rx != nil {
		rxErr = r.rx.Close()
	}
	r.state.Store(stateStopped)

	// The RX and TX halves of a split adapter commonly share one underlying
	// handle (socketcan, usbcan, relay all guard a second Close with
	// can.ErrClosed); whichever half closes second is expected to report
	// that, not a real failure, so it must not surface from a clean
	// shutdown.
	if txErr != nil && txErr != can.ErrClosed {
		return txErr
	}
	if rxErr != nil && rxErr != can.ErrClosed {
		return rxErr
	}
	return nil
}
