package midi

// EndpointDescriptor describes one OS-level MIDI connection point as seen by
// an enumeration scan. The same name may expose both an input and an output
// side; they are merged into a single descriptor.
type EndpointDescriptor struct {
	ID     string // stable port name, used as the device identifier
	Input  bool
	Output bool
}

// Output is an open MIDI output endpoint accepting raw wire messages.
type Output interface {
	Send(raw []byte) error
	Close() error
}

// Transport enumerates and opens MIDI endpoints. The real implementation
// sits on rtmidi; tests substitute an in-memory fake.
type Transport interface {
	// Endpoints lists everything currently visible to the driver,
	// including system-internal ports. Filtering is the caller's job.
	Endpoints() ([]EndpointDescriptor, error)

	// OpenInput starts delivering raw messages from the named endpoint to
	// recv. recv is invoked from the driver's listener goroutine. The
	// returned stop function detaches the listener and closes the port.
	OpenInput(id string, recv func(raw []byte)) (stop func(), err error)

	// OpenOutput opens the named endpoint for sending.
	OpenOutput(id string) (Output, error)

	Close() error
}
