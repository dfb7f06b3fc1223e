package rc1692

import (
	"context"
	"io"
)

// ReadBufferSize is the size of the buffer used to drain the stream.
const ReadBufferSize = 256

// Serve runs the driver against the given stream until Shutdown is called.
// It blocks while the reader and dispatcher tasks are running.
func (d *Device) Serve(stream io.ReadWriter) {
	d.stream = stream

	d.taskRunner.RunWithCancel("Device.Dispatcher", d.dispatcherTask)
	d.taskRunner.RunWithCancel("Device.Reader", d.readerTask)

	// Wait for both goroutines to complete.
	d.taskRunner.Wait()
}

// Shutdown stops the driver. This does not close the underlying stream.
func (d *Device) Shutdown() {
	if d.taskRunner != nil {
		d.taskRunner.Cancel()
	}
}

// dispatcherTask is the single consumer of the event channel. Every mutation
// of the queue, the accumulator and the in-flight command happens here, one
// event at a time.
func (d *Device) dispatcherTask(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			d.stopTimeout()
			d.debugf("Dispatcher task stopped.")

			return
		case ev := <-d.events:
			d.handle(ev)
		}
	}
}

// readerTask drains the stream and forwards received bytes to the dispatcher.
// Responses may arrive in fragments; accumulation is the dispatcher's job.
func (d *Device) readerTask(ctx context.Context) {
	buf := make([]byte, ReadBufferSize)

	for {
		select {
		case <-ctx.Done():
			d.debugf("Reader task stopped.")

			return
		default:
			// Pass on.
		}

		n, err := d.stream.Read(buf)

		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])

			d.debugf("Incoming: % X", data)

			if !d.post(event{kind: eventReceived, data: data}) {
				return
			}
		}

		if err != nil {
			if err != io.EOF {
				d.errorf("Error while reading: %v", err)
			}

			return
		}
	}
}
