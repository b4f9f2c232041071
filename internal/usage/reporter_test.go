package usage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeSender struct {
	chatIDs  []int64
	messages []string
	err      error
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string, _ bool) error {
	if f.err != nil {
		return f.err
	}
	f.chatIDs = append(f.chatIDs, chatID)
	f.messages = append(f.messages, text)
	return nil
}

func TestReporterPushesOnRollover(t *testing.T) {
	day1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ledger := NewLedger(day1)
	ledger.Record(10, 5, 15)

	sender := &fakeSender{}
	reporter := NewReporter(ledger, sender, 777, time.Hour, nil)
	reporter.now = func() time.Time { return day1.Add(24 * time.Hour) }

	reporter.check(context.Background())

	if len(sender.messages) != 1 {
		t.Fatalf("expected one report, got %d", len(sender.messages))
	}
	if sender.chatIDs[0] != 777 {
		t.Fatalf("report should target operator chat, got %d", sender.chatIDs[0])
	}
	if !strings.Contains(sender.messages[0], "2025-06-01") {
		t.Fatalf("report should name the completed day: %s", sender.messages[0])
	}
	if !strings.Contains(sender.messages[0], "Requests: 1") {
		t.Fatalf("report should carry counters: %s", sender.messages[0])
	}

	// 같은 날 재확인은 아무것도 보내지 않는다.
	reporter.check(context.Background())
	if len(sender.messages) != 1 {
		t.Fatalf("expected no duplicate report, got %d", len(sender.messages))
	}
}

func TestReporterSameDayNoPush(t *testing.T) {
	day := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ledger := NewLedger(day)
	sender := &fakeSender{}
	reporter := NewReporter(ledger, sender, 777, time.Hour, nil)
	reporter.now = func() time.Time { return day.Add(time.Hour) }

	reporter.check(context.Background())
	if len(sender.messages) != 0 {
		t.Fatalf("expected no report on same day")
	}
}

func TestReporterNoOperatorStillDrains(t *testing.T) {
	day1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ledger := NewLedger(day1)
	ledger.Record(1, 1, 2)

	sender := &fakeSender{}
	reporter := NewReporter(ledger, sender, 0, time.Hour, nil)
	reporter.now = func() time.Time { return day1.Add(24 * time.Hour) }

	reporter.check(context.Background())
	if len(sender.messages) != 0 {
		t.Fatalf("no operator id: nothing should be pushed")
	}
	if ledger.Current().Requests != 0 {
		t.Fatalf("ledger should still reset on rollover")
	}
}

func TestReporterSendFailureIsSwallowed(t *testing.T) {
	day1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ledger := NewLedger(day1)
	ledger.Record(1, 1, 2)

	sender := &fakeSender{err: errors.New("boom")}
	reporter := NewReporter(ledger, sender, 777, time.Hour, nil)
	reporter.now = func() time.Time { return day1.Add(24 * time.Hour) }

	reporter.check(context.Background()) // must not panic
	if ledger.Current().Requests != 0 {
		t.Fatalf("drain must happen even when the push fails")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ledger := NewLedger(time.Now())
	reporter := NewReporter(ledger, &fakeSender{}, 0, time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := reporter.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got: %v", err)
	}
}
