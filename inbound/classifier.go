package inbound

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/goliatone/go-ingest/core"
	glog "github.com/goliatone/go-logger/glog"
)

const recordsField = "Records"

type Classifier struct {
	validator *Validator
	logger    core.Logger
}

type ClassifierOption func(*Classifier)

func WithClassifierLogger(logger core.Logger) ClassifierOption {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// NewClassifier builds a classifier over validator. A nil validator is
// replaced with one compiled from the embedded schemas.
func NewClassifier(validator *Validator, opts ...ClassifierOption) (*Classifier, error) {
	if validator == nil {
		built, err := NewValidator()
		if err != nil {
			return nil, core.InternalError(err, "inbound: build validator")
		}
		validator = built
	}
	c := &Classifier{validator: validator}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = glog.Ensure(c.logger)
	return c, nil
}

// Classify decodes raw into an envelope. Storage notifications are not
// validated here; a record without bucket or key is reported by the object
// processor as an invalid event.
func (c *Classifier) Classify(ctx context.Context, raw []byte) (core.Envelope, error) {
	if c == nil {
		return core.Envelope{}, core.InternalError(nil, "inbound: classifier is nil")
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return core.Envelope{}, core.ClassificationError(
			"event must be a JSON object",
			map[string]any{"condition": "not_object"},
		)
	}

	if _, ok := top[recordsField]; ok {
		return c.classifyStorage(ctx, raw)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return core.Envelope{}, core.ClassificationError(
			"event must be a JSON object",
			map[string]any{"condition": "not_object"},
		)
	}
	evt, err := c.validator.Validate(fields)
	if err != nil {
		return core.Envelope{}, err
	}
	return core.Envelope{Kind: core.KindApplicationEvent, Application: &evt}, nil
}

func (c *Classifier) classifyStorage(ctx context.Context, raw []byte) (core.Envelope, error) {
	var notification events.S3Event
	if err := json.Unmarshal(raw, &notification); err != nil {
		return core.Envelope{}, core.ClassificationError(
			"storage notification is malformed: "+err.Error(),
			map[string]any{"condition": "malformed_records"},
		)
	}
	if len(notification.Records) == 0 {
		return core.Envelope{}, core.ClassificationError(
			"storage notification has no records",
			map[string]any{"condition": "empty_records"},
		)
	}
	if dropped := len(notification.Records) - 1; dropped > 0 {
		core.Log(ctx, c.logger, "warn", "inbound: extra storage records dropped", map[string]any{
			"records": len(notification.Records),
			"dropped": dropped,
		})
	}

	record := notification.Records[0]
	return core.Envelope{
		Kind: core.KindStorageNotification,
		Storage: &core.StorageNotification{
			Bucket:    record.S3.Bucket.Name,
			ObjectKey: decodeObjectKey(record.S3.Object.Key),
			ETag:      record.S3.Object.ETag,
			Sequencer: record.S3.Object.Sequencer,
			VersionID: record.S3.Object.VersionID,
			EventName: record.EventName,
		},
	}, nil
}

// decodeObjectKey reverses the form encoding applied to keys in
// notifications. Keys that fail to decode are used as delivered.
func decodeObjectKey(key string) string {
	if !strings.ContainsAny(key, "%+") {
		return key
	}
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}
