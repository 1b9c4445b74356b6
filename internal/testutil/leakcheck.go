// Package testutil provides testing utilities for the playd daemon.
package testutil

import (
	"testing"

	"go.uber.org/goleak"
)

// VerifyNoLeaks should be deferred at the start of tests that spawn goroutines.
// It verifies that no goroutines were leaked during the test.
func VerifyNoLeaks(t *testing.T, opts ...goleak.Option) {
	t.Helper()
	goleak.VerifyNone(t, opts...)
}

// IgnoreSpeakerGoroutines returns goleak options to ignore the audio output
// goroutines that the speaker keeps alive for the whole process lifetime.
// Use this when testing components built on the production engine adapter.
func IgnoreSpeakerGoroutines() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreAnyFunction("github.com/gopxl/beep/v2/speaker.Init.func1"),
		goleak.IgnoreAnyFunction("github.com/ebitengine/oto/v3.(*context).loop"),
	}
}
