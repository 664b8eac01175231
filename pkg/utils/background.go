// Package utils holds process plumbing shared by the commands: background
// goroutines, their error channels and HTTP listeners.
package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import "sync"

// RunAsync runs fn in its own goroutine. The returned channel receives the
// error fn returns, if any, and is closed once fn has returned.
func RunAsync(fn func() error) chan error {
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		if err := fn(); err != nil {
			errs <- err
		}
	}()
	return errs
}

// MergeErrorChans fans every error from channels into one channel, which
// is closed after all of channels are closed. Receivers that stop early
// must keep draining it or the forwarding goroutines block.
func MergeErrorChans(channels ...chan error) chan error {
	merged := make(chan error)
	var wg sync.WaitGroup
	wg.Add(len(channels))
	for _, ch := range channels {
		go func(src chan error) {
			defer wg.Done()
			for err := range src {
				merged <- err
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()
	return merged
}
