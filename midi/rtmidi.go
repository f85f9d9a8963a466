package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// RtTransport is the rtmidi-backed Transport used against real hardware.
type RtTransport struct {
	drv *rtmididrv.Driver
}

// NewRtTransport initialises the underlying rtmidi driver. Call Close when
// done.
func NewRtTransport() (*RtTransport, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return &RtTransport{drv: drv}, nil
}

func (t *RtTransport) Endpoints() ([]EndpointDescriptor, error) {
	ins, err := t.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("list inputs: %w", err)
	}
	outs, err := t.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}

	byID := make(map[string]*EndpointDescriptor)
	var order []string
	for _, in := range ins {
		id := in.String()
		byID[id] = &EndpointDescriptor{ID: id, Input: true}
		order = append(order, id)
	}
	for _, out := range outs {
		id := out.String()
		if d, ok := byID[id]; ok {
			d.Output = true
			continue
		}
		byID[id] = &EndpointDescriptor{ID: id, Output: true}
		order = append(order, id)
	}

	eps := make([]EndpointDescriptor, 0, len(order))
	for _, id := range order {
		eps = append(eps, *byID[id])
	}
	return eps, nil
}

func (t *RtTransport) OpenInput(id string, recv func(raw []byte)) (func(), error) {
	in, err := t.findIn(id)
	if err != nil {
		return nil, err
	}
	if err := in.Open(); err != nil {
		return nil, fmt.Errorf("open %q: %w", id, err)
	}

	// Listener errors are swallowed here; the presence scan notices a dead
	// port on its next pass and tears the device down properly.
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, _ int32) {
		recv(msg.Bytes())
	}, gomidi.HandleError(func(error) {}))
	if err != nil {
		_ = in.Close()
		return nil, fmt.Errorf("listen %q: %w", id, err)
	}

	return func() {
		stop()
		_ = in.Close()
	}, nil
}

func (t *RtTransport) OpenOutput(id string) (Output, error) {
	outs, err := t.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	for _, out := range outs {
		if out.String() == id {
			send, err := gomidi.SendTo(out)
			if err != nil {
				return nil, fmt.Errorf("open output %q: %w", id, err)
			}
			return &rtOutput{port: out, send: send}, nil
		}
	}
	return nil, fmt.Errorf("output %q not found", id)
}

func (t *RtTransport) Close() error {
	return t.drv.Close()
}

func (t *RtTransport) findIn(id string) (drivers.In, error) {
	ins, err := t.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("list inputs: %w", err)
	}
	for _, in := range ins {
		if in.String() == id {
			return in, nil
		}
	}
	return nil, fmt.Errorf("input %q not found", id)
}

type rtOutput struct {
	port drivers.Out
	send func(gomidi.Message) error
}

func (o *rtOutput) Send(raw []byte) error {
	return o.send(gomidi.Message(raw))
}

func (o *rtOutput) Close() error {
	return o.port.Close()
}
