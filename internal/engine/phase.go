package engine

import "fmt"

// Phase is one step of a run. Phases always execute in declaration order.
type Phase int

const (
	PhaseKillInitial Phase = iota
	PhaseDiscover
	PhaseKillPostDiscovery
	PhaseStopServices
	PhaseKillPostServices
	PhaseTasks
	PhaseFirewall
	PhaseShortcuts
	PhaseConfigStore
	PhaseDeletePriorityPaths
	PhaseDeepScan
	PhaseKillFinal
	PhaseReport
)

var phaseNames = [...]string{
	PhaseKillInitial:         "kill-initial",
	PhaseDiscover:            "discover",
	PhaseKillPostDiscovery:   "kill-post-discovery",
	PhaseStopServices:        "stop-services",
	PhaseKillPostServices:    "kill-post-services",
	PhaseTasks:               "tasks",
	PhaseFirewall:            "firewall",
	PhaseShortcuts:           "shortcuts",
	PhaseConfigStore:         "config-store",
	PhaseDeletePriorityPaths: "delete-priority-paths",
	PhaseDeepScan:            "deep-scan",
	PhaseKillFinal:           "kill-final",
	PhaseReport:              "report",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Phases returns every phase in execution order.
func Phases() []Phase {
	out := make([]Phase, 0, len(phaseNames))
	for p := PhaseKillInitial; p <= PhaseReport; p++ {
		out = append(out, p)
	}
	return out
}

// PhaseResult records how one phase went.
type PhaseResult struct {
	Phase   string `json:"phase"`
	Elapsed string `json:"elapsed"`
	Count   int    `json:"count"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}
