package state

import (
	"sync"
	"testing"
)

func TestNewContextZeroValues(t *testing.T) {
	c := NewContext()
	if c.JointPosition() != (JointPosition{}) {
		t.Fatal("expected zeroed JointPosition on construction")
	}
	if c.RobotControl() != (RobotControl{}) {
		t.Fatal("expected zeroed RobotControl on construction")
	}
}

func TestPublishJointPositionIsVisibleToReader(t *testing.T) {
	c := NewContext()
	want := JointPosition{Angles: [6]float64{1, 2, 3, 4, 5, 6}, ValidMask: 0x07, HwTsUs: 100, SysTsUs: 200}
	c.PublishJointPosition(want)
	if got := c.JointPosition(); got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPublishJointDriverLowSpeedJointIsReadCopyUpdate(t *testing.T) {
	c := NewContext()
	c.PublishJointDriverLowSpeedJoint(0, 40.5, 1, 1000, 2000)
	c.PublishJointDriverLowSpeedJoint(3, 55.0, 2, 1500, 2500)

	got := c.JointDriverLowSpeed()
	if got.TempC[0] != 40.5 || got.TempC[3] != 55.0 {
		t.Fatalf("expected both joint updates preserved, got %+v", got.TempC)
	}
	if got.ValidMask != (1<<0)|(1<<3) {
		t.Fatalf("expected mask bits 0 and 3 set, got %#x", got.ValidMask)
	}
	if got.SysTsUs != 2500 {
		t.Fatalf("expected latest SysTsUs to win, got %d", got.SysTsUs)
	}
}

func TestMotionSnapshotComposesBothEntities(t *testing.T) {
	c := NewContext()
	c.PublishJointPosition(JointPosition{HwTsUs: 1})
	c.PublishEndPose(EndPose{HwTsUs: 2})

	snap := c.MotionSnapshot()
	if snap.JointPosition.HwTsUs != 1 || snap.EndPose.HwTsUs != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestTryPublishCollisionProtectionSucceedsWhenUncontended(t *testing.T) {
	c := NewContext()
	want := CollisionProtection{Level: 2, TriggeredBy: 3, HwTsUs: 10, SysTsUs: 20}
	if !c.TryPublishCollisionProtection(want) {
		t.Fatal("expected uncontended TryPublish to succeed")
	}
	got, err := c.CollisionProtection()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestTryPublishCollisionProtectionDropsUnderWriterContention(t *testing.T) {
	c := NewContext()
	c.collision.mu.Lock()
	defer c.collision.mu.Unlock()

	ok := c.TryPublishCollisionProtection(CollisionProtection{Level: 9})
	if ok {
		t.Fatal("expected TryPublish to fail while the mutex is held elsewhere")
	}
}

func TestCollisionProtectionReadReturnsPoisonedAfterPanickingWriter(t *testing.T) {
	c := NewContext()
	func() {
		defer func() { recover() }()
		c.collision.tryPublish(func(*CollisionProtection) { panic("boom") })
	}()

	if _, err := c.CollisionProtection(); err != ErrPoisoned {
		t.Fatalf("expected ErrPoisoned after a panicking writer, got %v", err)
	}
}

func TestJointLimitConfigReadCopyUpdatePerJoint(t *testing.T) {
	c := NewContext()
	if !c.TryPublishJointLimitConfigJoint(2, -1.5, 1.5, 100) {
		t.Fatal("expected uncontended TryPublish to succeed")
	}
	if !c.TryPublishJointLimitConfigJoint(5, -0.5, 0.5, 200) {
		t.Fatal("expected uncontended TryPublish to succeed")
	}
	got, err := c.JointLimitConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Min[2] != -1.5 || got.Max[5] != 0.5 {
		t.Fatalf("unexpected per-joint values: %+v", got)
	}
	if got.ValidMask != (1<<2)|(1<<5) {
		t.Fatalf("expected mask bits 2 and 5 set, got %#x", got.ValidMask)
	}
}

// TestConcurrentPublishAndReadDoesNotTear exercises many concurrent writers
// and readers against the same atomic-pointer entity; the race detector
// (not run here, but this shape is designed to be run under -race) would
// catch a torn read if PublishJointPosition did anything but a single
// atomic.Store of a freshly allocated value.
func TestConcurrentPublishAndReadDoesNotTear(t *testing.T) {
	c := NewContext()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.PublishJointPosition(JointPosition{HwTsUs: uint64(n)})
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = c.JointPosition()
			}
		}()
	}
	wg.Wait()
}
