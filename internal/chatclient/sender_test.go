package chatclient

import (
	"testing"
	"time"
)

func TestTryAcquireSingleFlight(t *testing.T) {
	var sc sendController
	now := time.Now()

	if !sc.tryAcquire(time.Second, now) {
		t.Fatal("first acquire should succeed")
	}
	if sc.tryAcquire(time.Second, now.Add(5*time.Second)) {
		t.Fatal("acquire while in flight should fail")
	}
	sc.release()
	if sc.inFlight() {
		t.Fatal("release should clear the lock")
	}
}

func TestTryAcquireEnforcesMinInterval(t *testing.T) {
	var sc sendController
	now := time.Now()

	if !sc.tryAcquire(2*time.Second, now) {
		t.Fatal("first acquire should succeed")
	}
	sc.release()

	if sc.tryAcquire(2*time.Second, now.Add(time.Second)) {
		t.Fatal("acquire inside min interval should fail")
	}
	if !sc.tryAcquire(2*time.Second, now.Add(2*time.Second)) {
		t.Fatal("acquire after min interval should succeed")
	}
}

func TestIntervalMeasuredFromLastAcceptedAttempt(t *testing.T) {
	var sc sendController
	now := time.Now()

	if !sc.tryAcquire(2*time.Second, now) {
		t.Fatal("first acquire should succeed")
	}
	// Validation rejected the attempt after the stamp was consumed; the
	// interval still counts from it.
	sc.release()

	if sc.tryAcquire(2*time.Second, now.Add(1500*time.Millisecond)) {
		t.Fatal("acquire inside interval of a rejected attempt should fail")
	}
	if !sc.tryAcquire(2*time.Second, now.Add(2500*time.Millisecond)) {
		t.Fatal("acquire after the interval should succeed")
	}
}

func TestSafetyTimerReleasesStuckLock(t *testing.T) {
	var sc sendController
	if !sc.tryAcquire(0, time.Now().Add(-time.Minute)) {
		t.Fatal("acquire should succeed")
	}
	sc.armSafety(20 * time.Millisecond)

	waitFor(t, time.Second, func() bool { return !sc.inFlight() })

	// The normal release path may still run afterwards; it must be a no-op.
	sc.release()
	if sc.inFlight() {
		t.Fatal("lock should stay released")
	}
}

func TestReleaseStopsSafetyTimer(t *testing.T) {
	var sc sendController
	if !sc.tryAcquire(0, time.Now().Add(-time.Minute)) {
		t.Fatal("acquire should succeed")
	}
	sc.armSafety(10 * time.Millisecond)
	sc.release()

	if !sc.tryAcquire(0, time.Now()) {
		t.Fatal("reacquire after release should succeed")
	}
	time.Sleep(30 * time.Millisecond)
	if !sc.inFlight() {
		t.Fatal("stale safety timer released a fresh lock")
	}
	sc.release()
}
