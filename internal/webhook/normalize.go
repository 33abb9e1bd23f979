package webhook

import (
	"github.com/kmoray/trestle/internal/jsonval"
)

// Envelope is the normalized view of an inbound webhook payload.
//
// Two shapes arrive on the wire: the apim platform's native envelope
// (detected by its top-level "type" and "product" keys, with resource
// fields nested under "payload"), and a flat generic form where the same
// fields sit at the top level. Either way the rest of the service sees
// the same envelope.
type Envelope struct {
	// EventID is the sender-assigned event identifier.
	EventID string

	EventType     string
	CorrelationID string

	// Kind, SelfLink and References describe the resource the event is
	// about; only resource-style events carry them.
	Kind       string
	SelfLink   string
	References []Reference
}

// Reference is one entry of a resource's references list.
type Reference struct {
	Kind     string
	SelfLink string
}

// ParseEnvelope extracts the normalized envelope from a raw webhook body.
// Missing fields stay zero; a body that is not JSON returns an error.
func ParseEnvelope(body []byte) (Envelope, error) {
	v, err := jsonval.Parse(body)
	if err != nil {
		return Envelope{}, err
	}

	var env Envelope

	if v.Has("type", "product") {
		// Native apim envelope
		env.EventID, _ = v.Get("id").String()
		env.EventType, _ = v.Get("type").String()
		env.CorrelationID, _ = v.Get("correlationId").String()
		env.Kind, _ = v.Get("payload", "kind").String()
		env.SelfLink, _ = v.Get("payload", "metadata", "selfLink").String()
		env.References = parseReferences(v.Get("payload", "metadata", "references"))
		return env, nil
	}

	env.EventID, _ = v.FirstString("id", "event_id")
	env.EventType, _ = v.FirstString("eventType", "event_type")
	env.CorrelationID, _ = v.FirstString("correlationId", "correlation_id")
	env.Kind, _ = v.Get("kind").String()
	env.SelfLink, _ = v.Get("selfLink").String()
	env.References = parseReferences(v.Get("references"))
	return env, nil
}

func parseReferences(v jsonval.Value) []Reference {
	items, ok := v.Array()
	if !ok {
		return nil
	}

	refs := make([]Reference, 0, len(items))
	for _, item := range items {
		kind, _ := item.Get("kind").String()
		selfLink, _ := item.Get("selfLink").String()
		if kind == "" && selfLink == "" {
			continue
		}
		refs = append(refs, Reference{Kind: kind, SelfLink: selfLink})
	}
	return refs
}
