package iox

import (
	"errors"
	"testing"
)

type closer struct {
	called bool
	err    error
}

func (c *closer) Close() error {
	c.called = true
	return c.err
}

func TestDiscardClose(t *testing.T) {
	c := &closer{err: errors.New("close failed")}
	DiscardClose(c)
	if !c.called {
		t.Error("Close was not called")
	}
}

func TestCloseFunc(t *testing.T) {
	c := &closer{}
	fn := CloseFunc(c)
	if c.called {
		t.Error("Close called before cleanup function invoked")
	}
	fn()
	if !c.called {
		t.Error("Close was not called by cleanup function")
	}
}
