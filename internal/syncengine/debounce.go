package syncengine

import (
	"context"
	"time"
)

// debounce forwards a tick only after the input has been quiet for the
// given duration. Bursts of input collapse into a single output tick.
func debounce(ctx context.Context, d time.Duration, in <-chan struct{}) <-chan struct{} {
	out := make(chan struct{}, 1)

	go func() {
		timer := time.NewTimer(d)
		if !timer.Stop() {
			<-timer.C
		}
		armed := false

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case _, ok := <-in:
				if !ok {
					timer.Stop()
					return
				}
				if armed && !timer.Stop() {
					<-timer.C
				}
				timer.Reset(d)
				armed = true
			case <-timer.C:
				armed = false
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out
}
