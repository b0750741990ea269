package realtime_test

import (
	"testing"

	"go.viam.com/test"

	"mechctl/realtime"
)

func TestTryPublishBusySlot(t *testing.T) {
	entered := make(chan struct{})
	gate := make(chan struct{})
	var got []string
	p := realtime.NewPublisher(func(s string) {
		entered <- struct{}{}
		<-gate
		got = append(got, s)
	})

	// The sink picks up "a" and blocks, leaving the slot free for one more.
	test.That(t, p.TryPublish("a"), test.ShouldBeTrue)
	<-entered
	test.That(t, p.TryPublish("b"), test.ShouldBeTrue)
	test.That(t, p.TryPublish("c"), test.ShouldBeFalse)

	close(gate)
	<-entered
	test.That(t, p.TryPublish("d"), test.ShouldBeTrue)
	<-entered
	p.Close()

	test.That(t, got, test.ShouldResemble, []string{"a", "b", "d"})
}

func TestCloseFlushesQueuedValue(t *testing.T) {
	var got []int
	p := realtime.NewPublisher(func(v int) {
		got = append(got, v)
	})
	test.That(t, p.TryPublish(42), test.ShouldBeTrue)
	p.Close()
	test.That(t, got, test.ShouldResemble, []int{42})
}
