package hal

import "go.uber.org/atomic"

// FailureCounter counts failed pin operations. It may be used from
// interrupt context, where an error cannot be returned.
type FailureCounter struct {
	n atomic.Uint32
}

// Check counts err if it is not nil and reports whether it was.
func (c *FailureCounter) Check(err error) bool {
	if err == nil {
		return false
	}
	c.n.Inc()
	return true
}

// Load returns the number of failures so far.
func (c *FailureCounter) Load() uint32 {
	return c.n.Load()
}
