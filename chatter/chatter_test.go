package chatter_test

import (
	"testing"
	"time"

	"github.com/ksugimoto/hislipd/chatter"
)

func TestBelowThreshold(t *testing.T) {
	t.Parallel()
	d := chatter.New(5, time.Second, 10*time.Second)
	now := time.Now()

	for i := range 4 {
		r := d.Record(1, "*STB?", now.Add(time.Duration(i)*100*time.Millisecond))
		if r.Matched {
			t.Fatal("unexpected match before threshold")
		}
		if r.Alert != nil {
			t.Fatal("unexpected alert before threshold")
		}
	}
}

func TestAtThreshold(t *testing.T) {
	t.Parallel()
	d := chatter.New(5, time.Second, 10*time.Second)
	now := time.Now()

	for i := range 4 {
		d.Record(1, "*STB?", now.Add(time.Duration(i)*100*time.Millisecond))
	}

	r := d.Record(1, "*STB?", now.Add(400*time.Millisecond))
	if !r.Matched {
		t.Fatal("expected matched at threshold")
	}
	if r.Alert == nil {
		t.Fatal("expected alert at threshold")
	}
	if r.Alert.Count != 5 {
		t.Fatalf("got count %d, want 5", r.Alert.Count)
	}
	if r.Alert.SessionID != 1 || r.Alert.Payload != "*STB?" {
		t.Fatalf("got alert %+v, want session 1 payload *STB?", r.Alert)
	}
}

func TestWindowExpiry(t *testing.T) {
	t.Parallel()
	d := chatter.New(5, time.Second, 10*time.Second)
	now := time.Now()

	for i := range 3 {
		d.Record(1, "*STB?", now.Add(time.Duration(i)*100*time.Millisecond))
	}

	after := now.Add(2 * time.Second)
	for i := range 3 {
		r := d.Record(1, "*STB?", after.Add(time.Duration(i)*100*time.Millisecond))
		if r.Matched {
			t.Fatal("unexpected match: only 3 in window")
		}
	}
}

func TestCooldownExpiry(t *testing.T) {
	t.Parallel()
	d := chatter.New(5, 2*time.Second, time.Second)
	now := time.Now()

	for i := range 5 {
		d.Record(1, "*STB?", now.Add(time.Duration(i)*100*time.Millisecond))
	}

	after := now.Add(1500 * time.Millisecond)
	r := d.Record(1, "*STB?", after)
	if !r.Matched {
		t.Fatal("expected matched after cooldown expired")
	}
	if r.Alert == nil {
		t.Fatal("expected alert after cooldown expired")
	}
}

func TestDistinctSessionsDoNotShareCounts(t *testing.T) {
	t.Parallel()
	d := chatter.New(3, time.Second, 10*time.Second)
	now := time.Now()

	d.Record(1, "*STB?", now)
	d.Record(2, "*STB?", now.Add(100*time.Millisecond))
	r := d.Record(1, "*STB?", now.Add(200*time.Millisecond))
	if r.Matched {
		t.Fatal("session 1 should only have 2 occurrences, not matched yet")
	}

	r = d.Record(1, "*STB?", now.Add(300*time.Millisecond))
	if !r.Matched {
		t.Fatal("session 1 should hit threshold on its own 3rd occurrence")
	}
}

func TestEmptyPayload(t *testing.T) {
	t.Parallel()
	d := chatter.New(1, time.Second, 10*time.Second)
	r := d.Record(1, "", time.Now())
	if r.Matched {
		t.Fatal("expected no match for empty payload")
	}
}
