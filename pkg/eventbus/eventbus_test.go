package eventbus

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/quorumworks/govern-sdk/pkg/logging"
)

type stepResolved struct {
	status string
}

func TestPublisher_Publish_NoSubscribers(t *testing.T) {
	type unrelated struct {
		status string
	}
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *stepResolved) {
		t.Error("should not be called")
	})
	publisher.Publish(&unrelated{status: "approved"})

	if output := logBuffer.String(); output == "" {
		t.Error("should have logged")
	} else if !strings.Contains(output, "eventbus.Publish: no matching subscribers") {
		t.Errorf("should have contained no matching subscribers but got: %q", output)
	}
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	called := false
	var status string
	publisher.Subscribe(func(e *stepResolved) {
		called = true
		status = e.status
	})
	publisher.Publish(&stepResolved{status: "approved"})
	if !called {
		t.Error("should be called")
	}
	if status != "approved" {
		t.Errorf("expected: %v, got: %v", "approved", status)
	}
}

func TestPublisher_PanicRecovered(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.ErrorLevel))
	publisher.Subscribe(func(e *stepResolved) {
		panic("boom")
	})
	reached := false
	publisher.Subscribe(func(e *stepResolved) {
		reached = true
	})
	publisher.Publish(&stepResolved{status: "rejected"})
	if !reached {
		t.Error("panicking handler should not stop delivery to others")
	}
}

func TestPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.PanicLevel))
	handler := func(e *stepResolved) {}
	publisher.Subscribe(handler)
	if publisher.SubscribersCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", publisher.SubscribersCount())
	}
	publisher.Unsubscribe(handler)
	if publisher.SubscribersCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", publisher.SubscribersCount())
	}
}
