package observer

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event AnalysisEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                           { return "panicking" }

func newTestLogger(buf *bytes.Buffer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(buf)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.JSONFormatter{})
	return l
}

func TestMetricsObserver_Counts(t *testing.T) {
	metrics := NewMetricsObserver()
	publisher := NewEventPublisher(nil)
	publisher.Subscribe(metrics)

	ctx := context.Background()
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: AnalysisStarted, Category: "pest"})
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: AnalysisCompleted, ProcessingTime: 200 * time.Millisecond})
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: AnalysisStarted, Category: "weed"})
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: ImageRejected})
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: AnalysisFailed, FailureKind: "decode"})
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: AnalysisStarted, Category: "pest"})
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: AnalysisCompleted, ProcessingTime: 400 * time.Millisecond})

	m := metrics.GetMetrics()
	if m["total_analyses"] != int64(3) {
		t.Errorf("Expected 3 analyses, got %v", m["total_analyses"])
	}
	if m["successful_analyses"] != int64(2) || m["failed_analyses"] != int64(1) {
		t.Errorf("Unexpected success/failure counts: %v", m)
	}
	if m["rejected_images"] != int64(1) {
		t.Errorf("Expected 1 rejected image, got %v", m["rejected_images"])
	}
	if m["avg_processing_time_ms"] != int64(300) {
		t.Errorf("Expected average 300ms, got %v", m["avg_processing_time_ms"])
	}
	byCategory := m["analyses_by_category"].(map[string]int64)
	if byCategory["pest"] != 2 || byCategory["weed"] != 1 {
		t.Errorf("Unexpected category counts: %v", byCategory)
	}
	if m["failures_by_kind"].(map[string]int64)["decode"] != 1 {
		t.Errorf("Unexpected failure counts: %v", m["failures_by_kind"])
	}
}

func TestEventPublisher_PanickingObserverIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	metrics := NewMetricsObserver()
	publisher := NewEventPublisher(newTestLogger(&buf))
	publisher.Subscribe(panickingObserver{})
	publisher.Subscribe(metrics)

	publisher.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisStarted})

	if metrics.GetMetrics()["total_analyses"] != int64(1) {
		t.Error("Expected later observers to still receive the event")
	}
	if !strings.Contains(buf.String(), "Observer panicked") {
		t.Errorf("Expected panic to be logged, got %s", buf.String())
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	metrics := NewMetricsObserver()
	publisher := NewEventPublisher(nil)
	publisher.Subscribe(metrics)
	publisher.Unsubscribe(metrics)

	publisher.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisStarted})

	if metrics.GetMetrics()["total_analyses"] != int64(0) {
		t.Error("Expected no events after unsubscribe")
	}
}

func TestLoggingObserver_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLoggingObserver(newTestLogger(&buf))

	obs.OnEvent(context.Background(), AnalysisEvent{
		EventType:    AnalysisFailed,
		Category:     "disease",
		Source:       "upload",
		FailureKind:  "service",
		ErrorMessage: "quota exceeded",
		Metadata:     map[string]interface{}{"width": 10},
	})

	out := buf.String()
	for _, want := range []string{`"category":"disease"`, `"failure_kind":"service"`, `"error":"quota exceeded"`, `"width":10`, "Image analysis failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s in log output %s", want, out)
		}
	}
}
