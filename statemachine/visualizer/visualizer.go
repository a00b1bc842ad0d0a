// Package visualizer renders state machines as Mermaid state diagrams.
//
// Nested machines become composite states, transitions are labeled with the
// outcome that triggers them and outcomes that leave a machine point to its
// final state. Diagrams can be drawn from a live machine or from a snapshot
// received by the viewer, in which case the active states are highlighted.
//
//nolint:varnamelen // Short names idiomatic
package visualizer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/amp-labs/nestfsm/statemachine"
	"github.com/amp-labs/nestfsm/statemachine/viewer"
)

// ErrEmptySnapshot is returned when there is nothing to draw.
var ErrEmptySnapshot = errors.New("snapshot has no states")

// GenerateMermaid renders a live machine. The root is labeled name.
func GenerateMermaid(name string, sm *statemachine.StateMachine, opts Options) string {
	out, _ := Render(viewer.Snapshot(name, sm), opts)

	return out
}

// GenerateMermaidFromFile builds the machine described by a definition file and renders it.
func GenerateMermaidFromFile(path string, reg *statemachine.Registry, opts Options) (string, error) {
	def, err := statemachine.LoadDefinition(path)
	if err != nil {
		return "", err
	}

	sm, err := statemachine.Build(def, reg)
	if err != nil {
		return "", fmt.Errorf("failed to build %s: %w", def.Name, err)
	}

	return GenerateMermaid(def.Name, sm, opts), nil
}

// Render converts a snapshot to a Mermaid state diagram.
func Render(infos []viewer.StateInfo, opts Options) (string, error) {
	if len(infos) == 0 {
		return "", ErrEmptySnapshot
	}

	r := &renderer{
		infos:     infos,
		children:  make(map[int][]int),
		highlight: make(map[int]bool),
		opts:      opts,
	}

	for _, info := range infos[1:] {
		if info.Parent >= 0 {
			r.children[info.Parent] = append(r.children[info.Parent], info.ID)
		}
	}

	r.markHighlights()

	if opts.Fenced {
		r.sb.WriteString("```mermaid\n")
	}

	r.sb.WriteString("stateDiagram-v2\n")

	if opts.Direction != "" {
		r.line(1, "direction "+opts.Direction)
	}

	r.writeMachine(0, 1)

	r.sb.WriteString("\n")
	r.line(1, "classDef active fill:#fff9c4,stroke:#f57f17,stroke-width:3px")

	if len(r.highlight) > 0 {
		ids := make([]string, 0, len(r.highlight))
		for _, info := range infos {
			if r.highlight[info.ID] {
				ids = append(ids, nodeID(info.ID))
			}
		}

		r.line(1, "class "+strings.Join(ids, ",")+" active")
	}

	if opts.Fenced {
		r.sb.WriteString("```\n")
	}

	return r.sb.String(), nil
}

type renderer struct {
	sb        strings.Builder
	infos     []viewer.StateInfo
	children  map[int][]int
	highlight map[int]bool
	opts      Options
}

func (r *renderer) markHighlights() {
	if r.opts.HighlightActive {
		for id := 0; id >= 0 && id < len(r.infos); {
			next := r.infos[id].CurrentState
			if next <= id || next >= len(r.infos) {
				break
			}

			r.highlight[next] = true
			id = next
		}
	}

	for _, info := range r.infos[1:] {
		if slices.Contains(r.opts.HighlightPath, info.Name) {
			r.highlight[info.ID] = true
		}
	}
}

// writeMachine writes the children of machine id, which are drawn inside its composite state.
func (r *renderer) writeMachine(id, depth int) {
	machine := r.infos[id]
	siblings := make(map[string]int, len(r.children[id]))

	for _, child := range r.children[id] {
		siblings[r.infos[child].Name] = child
	}

	if machine.StartState >= 0 && machine.StartState < len(r.infos) {
		r.line(depth, "[*] --> "+nodeID(machine.StartState))
	}

	for _, child := range r.children[id] {
		info := r.infos[child]

		r.line(depth, fmt.Sprintf("state %q as %s", info.Name, nodeID(child)))

		if info.IsFSM {
			r.line(depth, "state "+nodeID(child)+" {")
			r.writeMachine(child, depth+1)
			r.line(depth, "}")
		}
	}

	for _, child := range r.children[id] {
		r.writeTransitions(r.infos[child], machine, siblings, depth)
	}
}

// writeTransitions draws one edge per outcome of info. Outcomes that resolve to
// neither a sibling nor an outcome of the enclosing machine are left out.
func (r *renderer) writeTransitions(info, machine viewer.StateInfo, siblings map[string]int, depth int) {
	for _, outcome := range info.Outcomes {
		target, mapped := info.Transitions[outcome]
		if !mapped {
			target = outcome
		}

		label := ""

		if r.opts.ShowOutcomes {
			label = ": " + outcome
		}

		if to, ok := siblings[target]; ok {
			r.line(depth, nodeID(info.ID)+" --> "+nodeID(to)+label)

			continue
		}

		if slices.Contains(machine.Outcomes, target) {
			if r.opts.ShowOutcomes && target != outcome {
				label = fmt.Sprintf(": %s (%s)", outcome, target)
			}

			r.line(depth, nodeID(info.ID)+" --> [*]"+label)
		}
	}
}

func (r *renderer) line(depth int, text string) {
	r.sb.WriteString(strings.Repeat("    ", depth))
	r.sb.WriteString(text)
	r.sb.WriteString("\n")
}

func nodeID(id int) string {
	return fmt.Sprintf("s%d", id)
}
