package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vitalis-health/obesity-risk/pkg/common/logger"
	"github.com/vitalis-health/obesity-risk/pkg/common/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestPublishPrediction(t *testing.T) {
	logger.Silence()
	writer := &fakeWriter{}
	producer := &Producer{writer: writer, topic: "predictions", source: "serving-service"}

	result := models.PredictionResult{ID: "abc", Label: "Normal_Weight", BMI: 22.5}
	if err := producer.PublishPrediction(context.Background(), result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.messages))
	}

	var event models.Event
	if err := json.Unmarshal(writer.messages[0].Value, &event); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if event.Type != models.EventPredictionCompleted || event.Source != "serving-service" {
		t.Fatalf("unexpected event %+v", event)
	}
	var decoded models.PredictionResult
	if err := json.Unmarshal(event.Data, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.Label != "Normal_Weight" || decoded.BMI != 22.5 {
		t.Fatalf("unexpected payload %+v", decoded)
	}
	if string(writer.messages[0].Key) != event.ID {
		t.Fatal("expected message key to be the event id")
	}
}

func TestPublishPropagatesWriterError(t *testing.T) {
	logger.Silence()
	producer := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, topic: "predictions"}
	if err := producer.PublishPrediction(context.Background(), models.PredictionResult{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestConsumeCommitsHandledAndUndecodableMessages(t *testing.T) {
	logger.Silence()
	good, _ := json.Marshal(models.Event{ID: "ok", Type: models.EventPredictionCompleted})
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: good},
		{Offset: 2, Value: []byte("not json")},
	}}
	consumer := &Consumer{reader: reader}

	var handled []string
	err := consumer.Consume(context.Background(), func(ctx context.Context, event models.Event) error {
		handled = append(handled, event.ID)
		return nil
	})
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF once the reader drains, got %v", err)
	}
	if len(handled) != 1 || len(reader.committed) != 2 {
		t.Fatalf("unexpected handled %v and %d commits", handled, len(reader.committed))
	}
	if string(reader.committed[1].Value) != "not json" {
		t.Fatalf("unexpected commit order")
	}
}

func TestConsumeRetriesFailedEventBeforeNextMessage(t *testing.T) {
	logger.Silence()
	flaky, _ := json.Marshal(models.Event{ID: "flaky", Type: models.EventPredictionCompleted})
	good, _ := json.Marshal(models.Event{ID: "ok", Type: models.EventPredictionCompleted})
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 10, Value: flaky},
		{Offset: 11, Value: good},
	}}
	consumer := &Consumer{reader: reader, retryBackoff: time.Millisecond, maxBackoff: 2 * time.Millisecond}

	var handled []string
	failures := 2
	err := consumer.Consume(context.Background(), func(ctx context.Context, event models.Event) error {
		handled = append(handled, event.ID)
		if event.ID == "flaky" && failures > 0 {
			failures--
			return errors.New("store unavailable")
		}
		return nil
	})
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF once the reader drains, got %v", err)
	}

	want := []string{"flaky", "flaky", "flaky", "ok"}
	if len(handled) != len(want) {
		t.Fatalf("expected %v, got %v", want, handled)
	}
	for i := range want {
		if handled[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, handled)
		}
	}
	if len(reader.committed) != 2 || reader.committed[0].Offset != 10 || reader.committed[1].Offset != 11 {
		t.Fatalf("expected offsets 10 and 11 committed in order, got %v", reader.committed)
	}
}

func TestConsumeStopsRetryingWhenContextEnds(t *testing.T) {
	logger.Silence()
	failing, _ := json.Marshal(models.Event{ID: "fail", Type: models.EventPredictionCompleted})
	good, _ := json.Marshal(models.Event{ID: "ok", Type: models.EventPredictionCompleted})
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 10, Value: failing},
		{Offset: 11, Value: good},
	}}
	consumer := &Consumer{reader: reader, retryBackoff: time.Millisecond, maxBackoff: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	attempts := 0
	err := consumer.Consume(ctx, func(ctx context.Context, event models.Event) error {
		if event.ID == "ok" {
			t.Fatal("later message must not be handled while an earlier one fails")
		}
		attempts++
		if attempts == 3 {
			cancel()
		}
		return errors.New("store unavailable")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(reader.committed) != 0 {
		t.Fatalf("failed event must stay uncommitted, got %v", reader.committed)
	}
}
