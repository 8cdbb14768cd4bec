package intent

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// inputEventSize is sizeof(struct input_event) on 64-bit Linux.
const inputEventSize = 24

// EvdevListener reads raw events from the /dev/input/event* character
// devices. It needs read access to those devices; on headless hosts or
// without permission it reports unavailability and the monitor degrades
// to an always-idle signal.
type EvdevListener struct{}

func (EvdevListener) Name() string { return "evdev" }

func (EvdevListener) Run(ctx context.Context, touch func()) error {
	devices, err := filepath.Glob("/dev/input/event*")
	if err != nil || len(devices) == 0 {
		return fmt.Errorf("no input devices")
	}

	fds := make([]unix.PollFd, 0, len(devices))
	for _, dev := range devices {
		fd, err := unix.Open(dev, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err != nil {
			continue
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}
	if len(fds) == 0 {
		return fmt.Errorf("no readable input devices")
	}
	defer func() {
		for _, pfd := range fds {
			unix.Close(int(pfd.Fd))
		}
	}()

	buf := make([]byte, inputEventSize*64)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.Poll(fds, 1000)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll input devices: %w", err)
		}
		if n == 0 {
			continue
		}

		touched := false
		for i := range fds {
			if fds[i].Revents&unix.POLLIN == 0 {
				continue
			}
			// Drain whatever is pending; the payload itself does not
			// matter, any event counts as user input.
			for {
				n, err := unix.Read(int(fds[i].Fd), buf)
				if n > 0 {
					touched = true
				}
				if err != nil || n < len(buf) {
					break
				}
			}
			fds[i].Revents = 0
		}
		if touched {
			touch()
			// Input arrives in bursts; no need to spin on every event.
			time.Sleep(100 * time.Millisecond)
		}
	}
}
