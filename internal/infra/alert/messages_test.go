package alert

import (
	"strings"
	"testing"

	"nodewarden/internal/core/domain"
)

func TestPluralize(t *testing.T) {
	if got := Pluralize(1, "oracle"); got != "1 oracle" {
		t.Errorf("Pluralize(1) = %q", got)
	}
	if got := Pluralize(3, "block"); got != "3 blocks" {
		t.Errorf("Pluralize(3) = %q", got)
	}
	if got := Pluralize(0, "error"); got != "0 errors" {
		t.Errorf("Pluralize(0) = %q", got)
	}
}

func TestTitleFor(t *testing.T) {
	trigger := domain.MonitorEvent{Type: domain.EventTrigger, Conditions: domain.ConditionNotSynchronized}
	if got := TitleFor(trigger, "eth-1"); got != "TRIGGER: eth-1 is NOT_SYNCHRONIZED" {
		t.Errorf("trigger title = %q", got)
	}

	retrigger := domain.MonitorEvent{Type: domain.EventRetrigger, Conditions: domain.ConditionOffline}
	if got := TitleFor(retrigger, "eth-1"); got != "RETRIGGER: eth-1 is still OFFLINE" {
		t.Errorf("retrigger title = %q", got)
	}

	resolved := domain.MonitorEvent{Type: domain.EventResolved, Conditions: domain.ConditionHealthy}
	if got := TitleFor(resolved, "eth-1"); got != "RESOLVED: eth-1 is HEALTHY again" {
		t.Errorf("resolved title = %q", got)
	}
}

func TestBodyForTriggerDetails(t *testing.T) {
	est := int64(90)
	ev := domain.MonitorEvent{
		Type:            domain.EventTrigger,
		Conditions:      domain.ConditionNotSynchronized,
		Height:          1000,
		OccurrenceCount: 6,
		Details: &domain.HealthDetails{
			BadOracles:       []string{"oracle-a"},
			NoOracle:         true,
			SecondsToRecover: &est,
		},
	}
	body := BodyFor(ev, domain.Node{Name: "eth-1"})

	for _, want := range []string{
		"eth-1 has had 6 consecutive health check errors in a row.",
		"Condition: NOT_SYNCHRONIZED",
		"Height: 1000",
		"1 oracle returned errors: oracle-a",
		"No oracles were available",
		"Estimated time to synchronization: 1m30s",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestBodyForResolved(t *testing.T) {
	ev := domain.MonitorEvent{
		Type:            domain.EventResolved,
		Conditions:      domain.ConditionHealthy,
		OccurrenceCount: 8,
	}
	body := BodyFor(ev, domain.Node{Name: "eth-1"})
	if !strings.Contains(body, "eth-1 recovered after 8 failed health checks.") {
		t.Errorf("unexpected resolved body:\n%s", body)
	}
}

func TestBodyForRecoveryTrend(t *testing.T) {
	stuck, growing := int64(0), int64(-1)

	ev := domain.MonitorEvent{
		Type:            domain.EventTrigger,
		Conditions:      domain.ConditionNotSynchronized,
		OccurrenceCount: 6,
		Details:         &domain.HealthDetails{SecondsToRecover: &stuck},
	}
	if body := BodyFor(ev, domain.Node{Name: "n"}); !strings.Contains(body, "recovery time unknown") {
		t.Errorf("stuck delta body:\n%s", body)
	}

	ev.Details = &domain.HealthDetails{SecondsToRecover: &growing}
	if body := BodyFor(ev, domain.Node{Name: "n"}); !strings.Contains(body, "will not recover") {
		t.Errorf("growing delta body:\n%s", body)
	}
}
