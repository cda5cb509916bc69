package recording

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/crm"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/pkg/logging"
)

const maxRecordingBytes = 50 << 20 // provider caps recordings well below this

// S3API is the subset of the S3 client the archiver uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner mints time-limited download URLs. Satisfied by s3.PresignClient.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ReadyEvent is the provider's notice that a call recording is available.
type ReadyEvent struct {
	CallID          string
	RecordingURL    string
	RecordingSID    string
	DurationSeconds int
	Status          string
}

// ArchiverConfig wires an Archiver.
type ArchiverConfig struct {
	S3        S3API
	Presigner Presigner
	Bucket    string
	// AccountSID and AuthToken authenticate the provider media download.
	AccountSID string
	AuthToken  string
	// URLTTL bounds presigned download links. Zero means 7 days.
	URLTTL time.Duration
	Calls  crm.CallRecords
	Client *http.Client
	Logger *logging.Logger
}

// Archiver moves provider call recordings into durable storage. It runs
// after the recording webhook acks, so nothing here can block call flow:
// any failure degrades to saving the provider's own URL on the record.
type Archiver struct {
	s3         S3API
	presigner  Presigner
	bucket     string
	accountSID string
	authToken  string
	urlTTL     time.Duration
	calls      crm.CallRecords
	client     *http.Client
	logger     *logging.Logger
}

func NewArchiver(cfg ArchiverConfig) *Archiver {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = 7 * 24 * time.Hour
	}
	return &Archiver{
		s3:         cfg.S3,
		presigner:  cfg.Presigner,
		bucket:     cfg.Bucket,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		urlTTL:     cfg.URLTTL,
		calls:      cfg.Calls,
		client:     cfg.Client,
		logger:     cfg.Logger,
	}
}

// Enabled reports whether durable storage is configured. When it is not,
// Archive still records the provider URL.
func (a *Archiver) Enabled() bool {
	return a.s3 != nil && a.bucket != ""
}

// Archive downloads the recording, stores it, and updates the call record
// with a presigned URL. Every failure path falls back to persisting the
// provider's raw media URL.
func (a *Archiver) Archive(ctx context.Context, ev ReadyEvent) error {
	if ev.CallID == "" || ev.RecordingURL == "" {
		return fmt.Errorf("recording: call id and url are required")
	}
	if ev.Status != "" && ev.Status != "completed" {
		return nil
	}

	audioURL := ev.RecordingURL + ".mp3"
	info := crm.RecordingInfo{
		URL:             audioURL,
		SID:             ev.RecordingSID,
		DurationSeconds: ev.DurationSeconds,
	}

	if a.Enabled() {
		if stored, err := a.store(ctx, ev, audioURL); err != nil {
			a.logger.Error("recording archive failed, keeping provider url",
				"call_id", ev.CallID,
				"recording_sid", ev.RecordingSID,
				"error", err,
			)
		} else {
			info = stored
		}
	}

	if err := a.calls.SaveCallRecording(ctx, ev.CallID, info); err != nil {
		return fmt.Errorf("recording: save record: %w", err)
	}
	a.logger.Info("call recording saved",
		"call_id", ev.CallID,
		"recording_sid", ev.RecordingSID,
		"archived", info.StoragePath != "",
	)
	return nil
}

func (a *Archiver) store(ctx context.Context, ev ReadyEvent, audioURL string) (crm.RecordingInfo, error) {
	audio, err := a.download(ctx, audioURL)
	if err != nil {
		return crm.RecordingInfo{}, err
	}

	key := fmt.Sprintf("recordings/%s/%s.mp3", ev.CallID, ev.RecordingSID)
	if _, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(audio),
		ContentType: aws.String("audio/mpeg"),
	}); err != nil {
		return crm.RecordingInfo{}, fmt.Errorf("recording: s3 put %s: %w", key, err)
	}

	url := audioURL
	if a.presigner != nil {
		signed, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
		}, func(opts *s3.PresignOptions) {
			opts.Expires = a.urlTTL
		})
		if err != nil {
			a.logger.Warn("recording presign failed", "call_id", ev.CallID, "error", err)
		} else {
			url = signed.URL
		}
	}

	return crm.RecordingInfo{
		URL:             url,
		SID:             ev.RecordingSID,
		DurationSeconds: ev.DurationSeconds,
		StoragePath:     key,
	}, nil
}

func (a *Archiver) download(ctx context.Context, audioURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("recording: build download: %w", err)
	}
	if a.accountSID != "" {
		req.SetBasicAuth(a.accountSID, a.authToken)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recording: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recording: download status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordingBytes))
	if err != nil {
		return nil, fmt.Errorf("recording: read body: %w", err)
	}
	return audio, nil
}
