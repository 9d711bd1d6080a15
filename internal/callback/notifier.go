// Package callback signs and delivers the async solve-completion payload
// described in spec.md §8's REDESIGN FLAGS: when async_mode is eventually
// implemented, a solve result is POSTed to the caller's callback_url with
// an HMAC signature so the receiver can verify the payload came from this
// service. The signing half is complete and tested; delivery is reserved
// infrastructure (see DESIGN.md) since /solve's async path still reports
// 501 until a durable run registry exists.
package callback

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"

	"github.com/sis-scheduler/scheduler-core/internal/domain"
	"github.com/sis-scheduler/scheduler-core/pkg/jobs"
)

const signatureHeader = "X-Scheduler-Signature"

// Payload is the JSON body POSTed to a callback_url on solve completion.
type Payload struct {
	SolverRunID uuid.UUID          `json:"solver_run_id"`
	Output      domain.SolverOutput `json:"output"`
}

// Signer derives a per-run HMAC key from a base secret via HKDF-SHA256,
// keyed per solver run so a leaked signature for one run cannot be
// replayed to forge another.
type Signer struct {
	secret []byte
}

// NewSigner constructs a Signer from the configured callback secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) deriveKey(runID uuid.UUID) ([]byte, error) {
	reader := hkdf.New(sha256.New, s.secret, runID[:], []byte("scheduler-callback-signature"))
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive callback signing key: %w", err)
	}
	return key, nil
}

// Sign computes the hex-encoded HMAC-SHA256 of body using a key derived
// for runID.
func (s *Signer) Sign(runID uuid.UUID, body []byte) (string, error) {
	key, err := s.deriveKey(runID)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether signature is the correct HMAC of body for runID.
func (s *Signer) Verify(runID uuid.UUID, body []byte, signature string) (bool, error) {
	expected, err := s.Sign(runID, body)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

// Notifier enqueues signed callback deliveries onto a job queue rather
// than blocking the request that produced them.
type Notifier struct {
	signer *Signer
	queue  *jobs.Queue
	client *http.Client
	logger *zap.Logger
}

// NewNotifier constructs a Notifier backed by the given queue. The queue
// must already have a handler installed via NewDeliveryQueue.
func NewNotifier(signer *Signer, queue *jobs.Queue, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{signer: signer, queue: queue, client: &http.Client{Timeout: 10 * time.Second}, logger: logger}
}

// NewDeliveryQueue builds the job queue a Notifier enqueues onto,
// delivering a signed Payload by HTTP POST. A failed delivery is
// re-enqueued by jobs.Queue after a fixed RetryDelay, up to MaxRetries
// times; the delay does not grow between attempts.
func NewDeliveryQueue(signer *Signer, client *http.Client, logger *zap.Logger, cfg jobs.QueueConfig) *jobs.Queue {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.Logger = logger
	return jobs.NewQueue("solve-callback", func(ctx context.Context, job jobs.Job) error {
		delivery, ok := job.Payload.(delivery)
		if !ok {
			return fmt.Errorf("callback job %s carries unexpected payload type", job.ID)
		}
		return deliver(ctx, client, signer, delivery)
	}, cfg)
}

type delivery struct {
	URL     string
	Payload Payload
}

// Notify enqueues a signed delivery of out to callbackURL.
func (n *Notifier) Notify(ctx context.Context, callbackURL string, out domain.SolverOutput) error {
	if n.queue == nil {
		return fmt.Errorf("callback notifier has no delivery queue")
	}
	return n.queue.Enqueue(jobs.Job{
		ID:   out.SolverRunID.String(),
		Type: "solve-callback",
		Payload: delivery{
			URL:     callbackURL,
			Payload: Payload{SolverRunID: out.SolverRunID, Output: out},
		},
	})
}

func deliver(ctx context.Context, client *http.Client, signer *Signer, d delivery) error {
	body, err := json.Marshal(d.Payload)
	if err != nil {
		return fmt.Errorf("marshal callback payload: %w", err)
	}

	signature, err := signer.Sign(d.Payload.SolverRunID, body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, signature)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("callback endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
