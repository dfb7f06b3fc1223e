package rc1692

import (
	"time"

	"github.com/twinj/uuid"
)

// dispatchState tracks where the command pipeline is in its cycle.
type dispatchState int

const (
	// stateIdle means the queue is empty and nothing is in flight.
	stateIdle dispatchState = iota

	// stateSending means the head of the queue is scheduled to run but has
	// not been written yet.
	stateSending

	// stateAwaitingResponse means a command has been written and its
	// response is being accumulated, with the timeout armed.
	stateAwaitingResponse

	// stateCompleting is the transient state while a finished command is
	// delivered and the queue advances.
	stateCompleting
)

// eventKind discriminates the events consumed by the dispatcher task.
type eventKind int

const (
	eventEnqueue eventKind = iota
	eventReceived
	eventTimeout
	eventAdvance
)

// event is a single unit of work for the dispatcher task. All queue,
// accumulator and in-flight state is touched exclusively while handling one
// of these, which gives the pipeline its run-to-completion semantics.
type event struct {
	kind eventKind
	step *step
	data []byte
	seq  uint64
}

// step is one queued command: everything needed to write it, decode its
// response and deliver the outcome.
type step struct {
	id       uuid.UUID
	spec     commandSpec
	payload  []byte
	callback Callback

	// onDone runs after successful completion, before the queue advances.
	// Used to flip the tracked mode once a mode switch is confirmed.
	onDone func()
}

// handle processes a single dispatcher event.
func (d *Device) handle(ev event) {
	switch ev.kind {
	case eventEnqueue:
		d.queue = append(d.queue, ev.step)

		d.debugf("Command %v (%s) queued, %d pending.", ev.step.id, ev.step.spec.id, len(d.queue))

		// Run the new head on the next tick, never on the caller's stack.
		if d.state == stateIdle {
			d.state = stateSending
			d.scheduleAdvance(0)
		}
	case eventReceived:
		d.receive(ev.data)
	case eventTimeout:
		if ev.seq != d.seq || d.state != stateAwaitingResponse {
			// Stale timer.
			return
		}

		d.timeout()
	case eventAdvance:
		if ev.seq != d.seq || d.state != stateSending {
			return
		}

		d.runHead()
	}
}

// runHead writes the command at the head of the queue and either completes it
// immediately (fire-and-forget) or starts awaiting its response.
func (d *Device) runHead() {
	s := d.queue[0]

	frame := make([]byte, 0, len(s.spec.code)+len(s.payload))
	frame = append(frame, s.spec.code...)
	frame = append(frame, s.payload...)

	d.inflight = s
	d.buf = d.buf[:0]

	d.debugf("Command %v (%s) outgoing: % X", s.id, s.spec.id, frame)

	if _, err := d.stream.Write(frame); err != nil {
		d.errorf("Error while writing command %v: %v", s.id, err)
		d.complete(Result{Err: err})

		return
	}

	if s.spec.responseLength == 0 {
		d.complete(Result{})

		return
	}

	d.state = stateAwaitingResponse
	d.armTimeout()
}

// receive appends newly arrived bytes to the accumulator and completes the
// in-flight command once enough bytes exist. Bytes arriving while nothing
// awaits a response are discarded.
func (d *Device) receive(data []byte) {
	if d.state != stateAwaitingResponse {
		d.debugf("Discarding %d unsolicited byte(s): % X", len(data), data)

		return
	}

	d.buf = append(d.buf, data...)

	want := d.inflight.spec.responseLength

	if len(d.buf) < want {
		return
	}

	d.stopTimeout()
	d.complete(decode(d.inflight.spec.id, d.buf[:want]))
}

// timeout fails the in-flight command and lets the queue advance.
func (d *Device) timeout() {
	d.timer = nil

	d.warnf("Command %v (%s) timed out after %v.", d.inflight.id, d.inflight.spec.id, d.config.Timeout)

	d.complete(Result{Err: ErrResponseTimeout})
}

// complete delivers the outcome of the in-flight command, pops it off the
// queue and schedules the next step. The post-command delay applies only in
// normal mode.
func (d *Device) complete(res Result) {
	d.state = stateCompleting

	s := d.inflight
	d.inflight = nil
	d.buf = nil
	d.queue = d.queue[1:]

	if s.callback != nil {
		s.callback(res)
	}

	if res.Err == nil && s.onDone != nil {
		s.onDone()
	}

	d.debugf("Command %v (%s) completed, %d pending.", s.id, s.spec.id, len(d.queue))

	if len(d.queue) == 0 {
		d.state = stateIdle

		return
	}

	delay := time.Duration(0)

	if d.Mode() == ModeNormal {
		delay = d.config.Delay
	}

	d.state = stateSending
	d.scheduleAdvance(delay)
}

// scheduleAdvance arms a one-shot timer that runs the head of the queue after
// the given delay. A zero delay is the next-tick case.
func (d *Device) scheduleAdvance(delay time.Duration) {
	d.seq++
	seq := d.seq

	time.AfterFunc(delay, func() {
		d.post(event{kind: eventAdvance, seq: seq})
	})
}

// armTimeout starts the response timeout for the in-flight command.
func (d *Device) armTimeout() {
	d.seq++
	seq := d.seq

	d.timer = time.AfterFunc(d.config.Timeout, func() {
		d.post(event{kind: eventTimeout, seq: seq})
	})
}

// stopTimeout cancels a pending response timeout. Bumping the sequence number
// also invalidates a timer that fired concurrently but has not been handled
// yet.
func (d *Device) stopTimeout() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.seq++
}
