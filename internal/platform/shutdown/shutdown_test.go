package shutdown

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDrainRunsEveryStepInOrder(t *testing.T) {
	var order []string
	step := func(name string, err error) Step {
		return Step{Name: name, Fn: func(context.Context) error {
			order = append(order, name)
			return err
		}}
	}
	boom := errors.New("boom")
	err := Drain(context.Background(), time.Second, step("tracing", nil), Step{Name: "skipped"}, step("bus", boom), step("db", nil))
	if got := strings.Join(order, ","); got != "tracing,bus,db" {
		t.Fatalf("order: want=tracing,bus,db got=%s", got)
	}
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "bus: boom") {
		t.Fatalf("err: want wrapped bus failure got=%v", err)
	}
}

func TestDrainSharesDeadline(t *testing.T) {
	err := Drain(context.Background(), time.Millisecond, Step{Name: "slow", Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err: want deadline exceeded got=%v", err)
	}
}
