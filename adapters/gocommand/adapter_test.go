package gocommand

import (
	"context"
	"errors"
	"testing"
)

type okMessage struct{}

func (okMessage) Type() string { return "ingest.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "ingest.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
	if err := ValidateMessageContract(struct{}{}); err == nil {
		t.Fatalf("expected message without Type() to fail")
	}
}

func TestValidatedSkipsExecuteOnContractFailure(t *testing.T) {
	executed := 0
	cmd := Validated(Func(func(context.Context, invalidMessage) error {
		executed++
		return nil
	}))
	if err := cmd.Execute(context.Background(), invalidMessage{}); err == nil {
		t.Fatalf("expected contract failure")
	}
	if executed != 0 {
		t.Fatalf("expected command not to run, ran %d times", executed)
	}
}

func TestValidatedRunsAndPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	executed := 0
	cmd := Validated(Func(func(context.Context, okMessage) error {
		executed++
		return boom
	}))
	if err := cmd.Execute(context.Background(), okMessage{}); !errors.Is(err, boom) {
		t.Fatalf("expected command error, got %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected one execution, got %d", executed)
	}
}

func TestNilInputs(t *testing.T) {
	if Func[okMessage](nil) != nil {
		t.Fatalf("expected nil func to yield nil commander")
	}
	if Validated[okMessage](nil) != nil {
		t.Fatalf("expected nil commander to stay nil")
	}
}
