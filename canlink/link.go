// Package canlink bridges the rig to a SocketCAN bus. Desired wrenches
// arrive as paired force/torque frames; calibration completions go out as
// a single announcement frame.
package canlink

import (
	"context"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"
	"golang.org/x/sys/unix"

	"mechctl/kinematics"
)

// Link owns one SocketCAN channel: a send socket shared by announcement
// publishers and, when a wrench sink is armed, a filtered receive socket
// drained by a background worker.
type Link struct {
	channel string
	logger  logging.Logger

	sendMu     sync.Mutex
	socketSend *canbus.Socket
	socketRecv *canbus.Socket

	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// New opens the link. A non-nil sink arms the receive side: wrench frames
// are decoded, combined into the latest desired wrench, and handed to sink
// from the receive worker.
func New(channel string, sink func(kinematics.Wrench), logger logging.Logger) (*Link, error) {
	if channel == "" {
		return nil, errors.New("can channel must be set")
	}
	socketSend, err := canbus.New()
	if err != nil {
		return nil, err
	}
	if err := socketSend.Bind(channel); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "binding %s", channel), socketSend.Close())
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	link := &Link{
		channel:    channel,
		logger:     logger,
		socketSend: socketSend,
		cancel:     cancel,
	}

	if sink != nil {
		socketRecv, err := canbus.New()
		if err != nil {
			cancel()
			return nil, multierr.Combine(err, socketSend.Close())
		}
		err = socketRecv.SetFilters([]unix.CanFilter{
			{Id: wrenchForceID, Mask: unix.CAN_SFF_MASK},
			{Id: wrenchTorqueID, Mask: unix.CAN_SFF_MASK},
		})
		if err != nil {
			cancel()
			return nil, multierr.Combine(err, socketSend.Close(), socketRecv.Close())
		}
		if err := socketRecv.Bind(channel); err != nil {
			cancel()
			return nil, multierr.Combine(errors.Wrapf(err, "binding %s", channel), socketSend.Close(), socketRecv.Close())
		}
		link.socketRecv = socketRecv

		link.activeBackgroundWorkers.Add(1)
		goutils.ManagedGo(func() {
			link.receiveLoop(cancelCtx, sink)
		}, link.activeBackgroundWorkers.Done)
	}
	return link, nil
}

// receiveLoop decodes wrench frames until the link closes. Transient
// socket errors back off exponentially; the backoff resets on the next
// good frame.
func (l *Link) receiveLoop(ctx context.Context, sink func(kinematics.Wrench)) {
	assembler := &wrenchAssembler{sink: sink}
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := l.socketRecv.Recv()
		if err != nil {
			if ctx.Err() != nil {
				// Close woke us by closing the socket.
				return
			}
			l.logger.Errorw("CAN receive error", "channel", l.channel, "error", err)
			if !goutils.SelectContextOrWait(ctx, retry.NextBackOff()) {
				return
			}
			continue
		}
		retry.Reset()
		if err := assembler.handle(frame); err != nil {
			l.logger.Warnw("dropping malformed wrench frame", "id", frame.ID, "error", err)
		}
	}
}

// PublishCalibrated announces a completed calibration run on the bus.
// The announcement is advisory; send failures are logged and dropped.
func (l *Link) PublishCalibrated(name string) {
	frame := encodeCalibrated(name)
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	if _, err := l.socketSend.Send(frame); err != nil {
		l.logger.Errorw("calibration announce send error", "channel", l.channel, "error", err)
	}
}

// Close stops the receive worker and releases both sockets. The receive
// socket closes first so a Recv blocked in the worker wakes up.
func (l *Link) Close() error {
	l.cancel()
	var err error
	if l.socketRecv != nil {
		err = multierr.Combine(err, l.socketRecv.Close())
	}
	l.activeBackgroundWorkers.Wait()
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	return multierr.Combine(err, l.socketSend.Close())
}
