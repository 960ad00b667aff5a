package core

// Driver raw link access, one ethernet frame per call.
type Driver interface {
	// Send transmits a complete frame, the slice is not retained.
	Send(frame []byte) error
	// Recv copies one pending frame into p and returns its size,
	// 0 if no frame is available.
	Recv(p []byte) (int, error)
	Close() error
}
