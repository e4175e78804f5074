package inbound

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/goliatone/go-ingest/core"
)

const (
	TypeUserRegistered = "UserRegistered"
	TypeOrderCreated   = "OrderCreated"

	ConditionMissingFields   = "missing_fields"
	ConditionUnsupportedType = "unsupported_type"
	ConditionSchema          = "schema"
	ConditionNoHandler       = "no_handler"

	schemaBaseURL = "https://go-ingest.local/schemas/"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var requiredFields = []string{"source", "type", "payload"}

// AllowedTypes lists the application event types accepted by validation.
func AllowedTypes() []string {
	return []string{TypeOrderCreated, TypeUserRegistered}
}

// Validator checks application events against the required field set, the
// type allow-list and the JSON schemas for the envelope and each payload.
// Unknown fields are ignored.
type Validator struct {
	allowed  map[string]struct{}
	envelope *jsonschema.Schema
	payloads map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	names := append([]string{"envelope"}, AllowedTypes()...)
	for _, name := range names {
		raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("inbound: read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(schemaBaseURL+name+".json", bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("inbound: load schema %s: %w", name, err)
		}
	}

	envelope, err := compiler.Compile(schemaBaseURL + "envelope.json")
	if err != nil {
		return nil, fmt.Errorf("inbound: compile envelope schema: %w", err)
	}
	v := &Validator{
		allowed:  map[string]struct{}{},
		envelope: envelope,
		payloads: map[string]*jsonschema.Schema{},
	}
	for _, eventType := range AllowedTypes() {
		schema, err := compiler.Compile(schemaBaseURL + eventType + ".json")
		if err != nil {
			return nil, fmt.Errorf("inbound: compile %s schema: %w", eventType, err)
		}
		v.allowed[eventType] = struct{}{}
		v.payloads[eventType] = schema
	}
	return v, nil
}

// Validate checks fields decoded from JSON and returns the typed event.
// Failures are ValidationErrors whose metadata names the condition.
func (v *Validator) Validate(fields map[string]any) (core.ApplicationEvent, error) {
	missing := make([]string, 0, len(requiredFields))
	for _, name := range requiredFields {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return core.ApplicationEvent{}, core.ValidationError(
			"Missing fields: "+strings.Join(missing, ", "),
			strings.Join(missing, ","),
			map[string]any{"condition": ConditionMissingFields, "missing_fields": missing},
		)
	}

	eventType, _ := fields["type"].(string)
	if _, ok := v.allowed[eventType]; !ok {
		return core.ApplicationEvent{}, core.ValidationError(
			fmt.Sprintf("unsupported event type: %v", fields["type"]),
			"type",
			map[string]any{"condition": ConditionUnsupportedType, "type": fmt.Sprint(fields["type"])},
		)
	}

	if err := v.envelope.Validate(any(fields)); err != nil {
		return core.ApplicationEvent{}, schemaError("envelope", eventType, err)
	}
	payload, _ := fields["payload"].(map[string]any)
	if err := v.payloads[eventType].Validate(any(payload)); err != nil {
		return core.ApplicationEvent{}, schemaError("payload", eventType, err)
	}

	source, _ := fields["source"].(string)
	return core.ApplicationEvent{
		Source:    source,
		EventType: eventType,
		Payload:   payload,
	}, nil
}

func schemaError(field, eventType string, err error) error {
	return core.ValidationError(
		fmt.Sprintf("%s does not match %s schema: %v", field, eventType, err),
		field,
		map[string]any{"condition": ConditionSchema, "type": eventType},
	)
}
