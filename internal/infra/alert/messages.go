package alert

import (
	"fmt"
	"strings"
	"time"

	"nodewarden/internal/core/domain"
)

// TitleFor builds the alert title for an escalation event.
func TitleFor(ev domain.MonitorEvent, nodeName string) string {
	switch ev.Type {
	case domain.EventTrigger:
		return fmt.Sprintf("TRIGGER: %s is %s", nodeName, ev.Conditions)
	case domain.EventRetrigger:
		return fmt.Sprintf("RETRIGGER: %s is still %s", nodeName, ev.Conditions)
	case domain.EventResolved:
		return fmt.Sprintf("RESOLVED: %s is %s again", nodeName, domain.ConditionHealthy)
	}
	return fmt.Sprintf("%s: %s", ev.Type, nodeName)
}

// BodyFor builds the alert body for an escalation event, including the
// diagnostic details collected by the health check.
func BodyFor(ev domain.MonitorEvent, node domain.Node) string {
	var lines []string

	switch ev.Type {
	case domain.EventResolved:
		lines = append(lines, fmt.Sprintf("%s recovered after %s.",
			node.Name, Pluralize(ev.OccurrenceCount, "failed health check")))
	default:
		lines = append(lines, fmt.Sprintf("%s has had %s in a row.",
			node.Name, Pluralize(ev.OccurrenceCount, "consecutive health check error")))
		lines = append(lines, fmt.Sprintf("Condition: %s", ev.Conditions))
	}

	if ev.Height > 0 {
		lines = append(lines, fmt.Sprintf("Height: %d", ev.Height))
	}

	if d := ev.Details; d != nil {
		if len(d.BadOracles) > 0 {
			lines = append(lines, fmt.Sprintf("%s returned errors: %s",
				Pluralize(len(d.BadOracles), "oracle"), strings.Join(d.BadOracles, ", ")))
		}
		if d.NoOracle {
			lines = append(lines, "No oracles were available; height compared against peers only.")
		}
		if d.NodeIsAheadOfPeer > 0 {
			lines = append(lines, fmt.Sprintf("Node is %s ahead of its best reference.",
				Pluralize(int(d.NodeIsAheadOfPeer), "block")))
		}
		if d.SecondsToRecover != nil {
			lines = append(lines, recoveryLine(*d.SecondsToRecover))
		}
	}

	return strings.Join(lines, "\n")
}

// Pluralize renders "1 error" / "3 errors". Nouns here all take a plain
// trailing s.
func Pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func recoveryLine(seconds int64) string {
	switch {
	case seconds < 0:
		return "Delta is growing; node will not recover at the current trend."
	case seconds == 0:
		return "Delta is not shrinking; recovery time unknown."
	default:
		d := time.Duration(seconds) * time.Second
		return fmt.Sprintf("Estimated time to synchronization: %s (linear estimate).", d)
	}
}
