// Package fake provides the databases and the error helpers shared by the unit
// tests. The bad implementations fail every operation with the fake error.
package fake

import (
	"sync"

	"golang.org/x/xerrors"
)

var fakeErr = xerrors.New("fake error")

// GetError returns the fake error.
func GetError() error {
	return fakeErr
}

// Err returns the message of the fake error prefixed by the given message, as
// an error wrapped with the %v verb would be formatted.
func Err(msg string) string {
	return msg + ": " + fakeErr.Error()
}

// Call records the calls of a function.
type Call struct {
	sync.Mutex
	calls [][]interface{}
}

// NewCall returns a new empty call record.
func NewCall() *Call {
	return &Call{}
}

// Get returns the ith argument of the nth call.
func (c *Call) Get(n, i int) interface{} {
	c.Lock()
	defer c.Unlock()

	return c.calls[n][i]
}

// Len returns the number of calls.
func (c *Call) Len() int {
	c.Lock()
	defer c.Unlock()

	return len(c.calls)
}

// Add adds a call to the list.
func (c *Call) Add(args ...interface{}) {
	c.Lock()
	defer c.Unlock()

	c.calls = append(c.calls, args)
}

// Clear forgets the recorded calls.
func (c *Call) Clear() {
	c.Lock()
	defer c.Unlock()

	c.calls = nil
}
