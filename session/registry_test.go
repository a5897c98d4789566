package session_test

import (
	"errors"
	"testing"

	"github.com/ksugimoto/hislipd/hislip"
	"github.com/ksugimoto/hislipd/session"
)

type fakeHandler struct {
	closed         bool
	srqStatusBytes []uint8
	interrupted    int
}

func (f *fakeHandler) Close() error { f.closed = true; return nil }

func (f *fakeHandler) PushServiceRequest(statusByte uint8) error {
	f.srqStatusBytes = append(f.srqStatusBytes, statusByte)
	return nil
}

func (f *fakeHandler) PushInterrupted() error {
	f.interrupted++
	return nil
}

func TestRegistryCreateAssignsIncreasingIDs(t *testing.T) {
	t.Parallel()

	r := session.NewRegistry(64)
	s1, err := r.Create("hislip0", hislip.Version{Major: 1}, false, &fakeHandler{}, 1<<20)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	s2, err := r.Create("hislip0", hislip.Version{Major: 1}, false, &fakeHandler{}, 1<<20)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s1.ID() == 0 || s2.ID() == 0 {
		t.Fatalf("session ids must be nonzero, got %d and %d", s1.ID(), s2.ID())
	}
	if s1.ID() == s2.ID() {
		t.Fatalf("expected distinct session ids, got %d twice", s1.ID())
	}
	if r.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", r.Count())
	}
}

func TestRegistryAtCapacity(t *testing.T) {
	t.Parallel()

	r := session.NewRegistry(1)
	if _, err := r.Create("hislip0", hislip.Version{}, false, &fakeHandler{}, 1<<20); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := r.Create("hislip0", hislip.Version{}, false, &fakeHandler{}, 1<<20)
	if !errors.Is(err, session.ErrAtCapacity) {
		t.Fatalf("Create() error = %v, want ErrAtCapacity", err)
	}
}

func TestRegistryDualAttachRefused(t *testing.T) {
	t.Parallel()

	r := session.NewRegistry(64)
	s, err := r.Create("hislip0", hislip.Version{}, false, &fakeHandler{}, 1<<20)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := r.AttachAsync(s.ID(), &fakeHandler{}); err != nil {
		t.Fatalf("first AttachAsync() error = %v", err)
	}

	_, err = r.AttachAsync(s.ID(), &fakeHandler{})
	if !errors.Is(err, session.ErrAlreadyAttached) {
		t.Fatalf("second AttachAsync() error = %v, want ErrAlreadyAttached", err)
	}

	// First session remains registered and reachable.
	if _, err := r.Get(s.ID()); err != nil {
		t.Fatalf("Get() error = %v, session should be unaffected", err)
	}
}

func TestRegistryDisconnectIsIdempotent(t *testing.T) {
	t.Parallel()

	r := session.NewRegistry(64)
	s, _ := r.Create("hislip0", hislip.Version{}, false, &fakeHandler{}, 1<<20)
	r.Disconnect(s)
	r.Disconnect(s) // no panic, no error surface

	if _, err := r.Get(s.ID()); !errors.Is(err, session.ErrUnknownSession) {
		t.Fatalf("Get() after disconnect error = %v, want ErrUnknownSession", err)
	}
	if r.Count() != 0 {
		t.Fatalf("Count() after disconnect = %d, want 0", r.Count())
	}
}

func TestSessionMAVTruthTable(t *testing.T) {
	t.Parallel()

	s := session.New(1, "hislip0", hislip.Version{Major: 1}, false, &fakeHandler{}, 1<<20)
	if s.MAV() {
		t.Fatal("MAV should start false")
	}
	s.SetMAV(true)
	if !s.MAV() {
		t.Fatal("MAV should be true after SetMAV(true)")
	}
	if was := s.ClearMAVIfRMT(false); !was {
		t.Fatal("ClearMAVIfRMT(false) should report MAV was set")
	}
	if !s.MAV() {
		t.Fatal("MAV should remain true when RMT is false")
	}
	if was := s.ClearMAVIfRMT(true); !was {
		t.Fatal("ClearMAVIfRMT(true) should report MAV was set before clearing")
	}
	if s.MAV() {
		t.Fatal("MAV should be false after RMT-triggered clear")
	}
}

func TestSessionLockExclusiveThenShared(t *testing.T) {
	t.Parallel()

	s := session.New(1, "hislip0", hislip.Version{}, false, &fakeHandler{}, 1<<20)
	if !s.TryLockExclusive() {
		t.Fatal("TryLockExclusive() should succeed on an unlocked session")
	}
	if s.TryLockShared("a") {
		t.Fatal("TryLockShared() should fail while exclusive lock is held")
	}
	s.Unlock()
	if !s.TryLockShared("a") {
		t.Fatal("TryLockShared() should succeed after unlock")
	}
	if !s.TryLockShared("a") {
		t.Fatal("TryLockShared() should allow joining the same shared name")
	}
	if info := s.LockInfo(); info.SharedCount != 2 {
		t.Fatalf("SharedCount = %d, want 2", info.SharedCount)
	}
	if s.TryLockShared("b") {
		t.Fatal("TryLockShared() should fail for a different shared name")
	}
}

func TestSessionPushServiceRequestRequiresAsyncChannel(t *testing.T) {
	t.Parallel()

	s := session.New(1, "hislip0", hislip.Version{}, false, &fakeHandler{}, 1<<20)
	if err := s.PushServiceRequest(0x42); !errors.Is(err, session.ErrNoAsyncChannel) {
		t.Fatalf("PushServiceRequest() before attach error = %v, want ErrNoAsyncChannel", err)
	}

	async := &fakeHandler{}
	if !s.AttachAsync(async) {
		t.Fatal("AttachAsync() should succeed")
	}

	if err := s.PushServiceRequest(0x42); err != nil {
		t.Fatalf("PushServiceRequest() error = %v", err)
	}
	if len(async.srqStatusBytes) != 1 || async.srqStatusBytes[0] != 0x42 {
		t.Fatalf("async handler received %v, want [0x42]", async.srqStatusBytes)
	}

	if !s.TakeSRQPending() {
		t.Fatal("TakeSRQPending() should report true after PushServiceRequest")
	}
	if s.TakeSRQPending() {
		t.Fatal("TakeSRQPending() should clear the bit on first read")
	}
}

func TestSessionDeviceClearingRoundTrip(t *testing.T) {
	t.Parallel()

	s := session.New(1, "hislip0", hislip.Version{}, false, &fakeHandler{}, 1<<20)
	if s.DeviceClearing() {
		t.Fatal("DeviceClearing() should start false")
	}
	s.SetDeviceClearing(true)
	if !s.DeviceClearing() {
		t.Fatal("DeviceClearing() should be true after SetDeviceClearing(true)")
	}
	s.SetDeviceClearing(false)
	if s.DeviceClearing() {
		t.Fatal("DeviceClearing() should be false after SetDeviceClearing(false)")
	}
}

func TestSessionAppendSyncDataEnforcesMaxMessageSize(t *testing.T) {
	t.Parallel()

	s := session.New(1, "hislip0", hislip.Version{}, false, &fakeHandler{}, 4)
	if err := s.AppendSyncData([]byte("ab")); err != nil {
		t.Fatalf("AppendSyncData() error = %v", err)
	}
	if err := s.AppendSyncData([]byte("abc")); !errors.Is(err, session.ErrBufferFull) {
		t.Fatalf("AppendSyncData() error = %v, want ErrBufferFull", err)
	}
}
