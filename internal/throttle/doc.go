// Package throttle provides the process-wide request gate and the jittered
// backoff windows used when talking to a rate-limited origin.
//
//	gate := throttle.NewGate(throttle.DefaultOptions())
//	if err := gate.Wait(ctx); err != nil {
//	    return err // ctx cancelled
//	}
//	// issue request
//
// A Window draws random waits for retry backoff:
//
//	w := throttle.Window{Min: 5 * time.Second, Max: 10 * time.Second}
//	throttle.Sleep(ctx, w.Draw(nil))
package throttle
