package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type EventKind string

const (
	KindStorageNotification EventKind = "storage_notification"
	KindApplicationEvent    EventKind = "application_event"
)

// StorageNotification is the first record of an object-created notification.
// ETag and Sequencer are optional and empty when the notification omits them.
type StorageNotification struct {
	Bucket    string
	ObjectKey string
	ETag      string
	Sequencer string
	VersionID string
	EventName string
}

type ApplicationEvent struct {
	Source    string         `json:"source"`
	EventType string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

// Type satisfies the go-command message contract so handlers can be plain
// command.Commander implementations.
func (e ApplicationEvent) Type() string {
	return e.EventType
}

// Envelope is the classified form of one inbound event. Exactly one of
// Storage or Application is set, matching Kind.
type Envelope struct {
	Kind        EventKind
	Storage     *StorageNotification
	Application *ApplicationEvent
}

type ClaimStatus string

const (
	ClaimStatusProcessing ClaimStatus = "PROCESSING"
	ClaimStatusDone       ClaimStatus = "DONE"
)

// ClaimFields are the attributes written with a new claim. The store derives
// ExpiresAt from CreatedAt and the ttl passed to InsertIfAbsent.
type ClaimFields struct {
	Status    ClaimStatus
	Owner     string
	CreatedAt time.Time
}

type Claim struct {
	Key       string
	Status    ClaimStatus
	Owner     string
	CreatedAt time.Time
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// IdempotencyStore is the only capability the claim coordinator consumes.
// InsertIfAbsent must be a single atomic conditional write: it returns
// ErrAlreadyExists when a record for key is present and never overwrites it.
type IdempotencyStore interface {
	InsertIfAbsent(ctx context.Context, key string, fields ClaimFields, ttl time.Duration) error
	UpdateStatus(ctx context.Context, key string, status ClaimStatus) error
}

// ClaimReader is implemented by stores that can load a claim for operators.
type ClaimReader interface {
	GetClaim(ctx context.Context, key string) (Claim, error)
}

// ObjectReader returns the full content of one stored object. A missing
// object is reported as ErrObjectNotFound; anything else is transient.
type ObjectReader interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// Response is the outbound result of one invocation.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
