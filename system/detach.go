package system

import (
	"sync"
)

var detached sync.WaitGroup

// Detach runs fn on its own goroutine. Nobody joins it; a panic inside fn
// is recovered and reported through Error under name.
func Detach(name string, fn func()) {
	if fn == nil {
		panic("system: Detach with nil function")
	}
	detached.Add(1)
	go func() {
		defer detached.Done()
		defer func() {
			if r := recover(); r != nil {
				Error("%s: detached task panicked -- %v", name, r)
			}
		}()
		fn()
	}()
}

// WaitDetached blocks until every task started by Detach has returned.
// It exists for tests and orderly shutdown; the runtime never calls it.
func WaitDetached() {
	detached.Wait()
}
