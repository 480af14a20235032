package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fastexam/exam-portal/internal/metrics"
)

// AnswerAPI is the delivery target for autosaved answers, satisfied by
// backend.Client.
type AnswerAPI interface {
	SaveAnswer(ctx context.Context, sessionID string, questionID int, answer string) error
}

// answerPayload is the queue wire format.
type answerPayload struct {
	SessionID  string `json:"session_id"`
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
}

// QueueSaver is the producer side: it satisfies exam.AnswerSaver by
// enqueueing the answer for the worker to deliver.
type QueueSaver struct {
	queue Queue
	log   zerolog.Logger
}

// NewQueueSaver creates a QueueSaver.
func NewQueueSaver(queue Queue, log zerolog.Logger) *QueueSaver {
	return &QueueSaver{
		queue: queue,
		log:   log.With().Str("component", "queue_saver").Logger(),
	}
}

// SaveAnswer enqueues one answer for asynchronous delivery.
func (s *QueueSaver) SaveAnswer(ctx context.Context, sessionID string, questionID int, answer string) error {
	payload, err := json.Marshal(answerPayload{
		SessionID:  sessionID,
		QuestionID: questionID,
		Answer:     answer,
	})
	if err != nil {
		return fmt.Errorf("encode autosave payload: %w", err)
	}
	return s.queue.Enqueue(ctx, payload)
}

// AutosaveWorker drains the queue and delivers each answer to the exam API.
// Failed deliveries are requeued, giving at-least-once semantics.
type AutosaveWorker struct {
	queue        Queue
	api          AnswerAPI
	log          zerolog.Logger
	retryBackoff time.Duration
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(queue Queue, api AnswerAPI, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		queue:        queue,
		api:          api,
		log:          log.With().Str("component", "autosave_worker").Logger(),
		retryBackoff: 5 * time.Second,
	}
}

// Start begins the worker loop. Call in a goroutine; cancel ctx to stop.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	payload, err := w.queue.Dequeue(ctx, time.Second)
	if err != nil {
		if err != ErrEmpty && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Dequeue error")
		}
		return
	}
	w.deliver(ctx, payload, true)
}

// deliver posts one payload to the exam API. With requeue enabled, a failed
// delivery goes back on the queue and the worker backs off.
func (w *AutosaveWorker) deliver(ctx context.Context, payload []byte, requeue bool) {
	var p answerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error, dropping payload")
		return
	}

	if err := w.api.SaveAnswer(ctx, p.SessionID, p.QuestionID, p.Answer); err != nil {
		metrics.AutosaveDeliveries.WithLabelValues("retry").Inc()
		w.log.Error().Err(err).
			Str("session_id", p.SessionID).
			Int("question_id", p.QuestionID).
			Msg("Delivery failed")
		if requeue {
			if rqErr := w.queue.Requeue(ctx, payload); rqErr != nil {
				w.log.Error().Err(rqErr).Msg("Requeue failed, answer lost")
			}
			time.Sleep(w.retryBackoff)
		}
		return
	}
	metrics.AutosaveDeliveries.WithLabelValues("ok").Inc()
}

// drain delivers whatever is left in the queue before shutdown. Failures
// are not requeued here or the loop would never finish.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		payload, err := w.queue.Dequeue(ctx, 50*time.Millisecond)
		if err != nil {
			break
		}
		w.deliver(ctx, payload, false)
		drained++
	}
	if drained > 0 {
		w.log.Info().Int("drained", drained).Msg("Queue drained")
	}
}
