// Package rules decides what the processor does with an audited event:
// run the provisioning workflow, relay an approval, record-and-ignore, or
// nothing at all.
package rules

import "strings"

// Action is the processing decision for one event.
type Action int

const (
	// ActionNone leaves the record processed with no side effects.
	ActionNone Action = iota
	// ActionProcess runs the asset-request provisioning workflow.
	ActionProcess
	// ActionIgnore records the event and skips any workflow.
	ActionIgnore
	// ActionRelayApproval relays an ITSM approval back to the origin.
	ActionRelayApproval
)

func (a Action) String() string {
	switch a {
	case ActionProcess:
		return "process"
	case ActionIgnore:
		return "ignore"
	case ActionRelayApproval:
		return "relay_approval"
	default:
		return "none"
	}
}

// Event kinds and types the engine routes on.
const (
	KindAssetRequest      = "AssetRequest"
	TypeChangeApproved    = "change.approved"
	TypeChangeRequested   = "change.requested"
	incidentTypePrefix    = "incident."
	sourceAPIManagement   = "apim"
	sourceServiceDesk     = "itsm"
)

// Engine maps (source, event type, resource kind) to an Action. The
// configured ignore list wins over every built-in rule.
type Engine struct {
	ignored []string
}

// New creates an engine with the configured ignored event types. Entries
// match exactly or, with a trailing ".*", by prefix.
func New(ignoredTypes []string) *Engine {
	return &Engine{ignored: ignoredTypes}
}

// Decide returns the action for an event. Kind is the resource kind carried
// by resource-style payloads; empty for flat events.
func (e *Engine) Decide(source, eventType, kind string) Action {
	if e.isIgnored(eventType) {
		return ActionIgnore
	}

	switch source {
	case sourceAPIManagement:
		if kind == KindAssetRequest {
			return ActionProcess
		}
	case sourceServiceDesk:
		switch {
		case eventType == TypeChangeApproved:
			return ActionRelayApproval
		case eventType == TypeChangeRequested:
			return ActionIgnore
		case strings.HasPrefix(eventType, incidentTypePrefix):
			return ActionIgnore
		}
	}
	return ActionNone
}

func (e *Engine) isIgnored(eventType string) bool {
	for _, pattern := range e.ignored {
		if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
			if strings.HasPrefix(eventType, prefix+".") {
				return true
			}
			continue
		}
		if eventType == pattern {
			return true
		}
	}
	return false
}
