package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to let a [Recording] finish finalizing when its chunks are no
// longer wanted (e.g. on session teardown).
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
