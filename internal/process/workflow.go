package process

import (
	"context"
	"fmt"
	"strings"

	"github.com/kmoray/trestle/internal/eventstore"
	"github.com/kmoray/trestle/internal/jsonval"
	"github.com/kmoray/trestle/internal/webhook"
)

const (
	approvedReason       = "Auto-approved for catalog fulfillment"
	defaultRelayComments = "Approved via ITSM"
	relayApprovalState   = "approved"
	needByDateLayout     = "01/02/2006"
	relayNoticeSubject   = "Change approval received"
	relayNoticeTemplate  = "Approval received for request {{.RequestID}}.\n\nComments: {{.Comments}}\nEvent: {{.EventID}}\n"
	referenceKindAsset   = "Asset"
)

// provisionAssetRequest runs the asset-request workflow: auto-approve the
// request on the origin platform and open a fulfillment ticket in the
// service catalog.
func (p *Processor) provisionAssetRequest(ctx context.Context, rec *eventstore.EventRecord, env webhook.Envelope) error {
	if env.SelfLink == "" {
		return fmt.Errorf("asset request event carries no selfLink")
	}

	logger := p.logger.With("event_id", rec.ID, "self_link", env.SelfLink)

	resource, err := p.platform.GetResourceBySelfLink(ctx, env.SelfLink)
	if err != nil {
		return fmt.Errorf("fetch request resource: %w", err)
	}

	asset, assetLink, err := p.resolveAsset(ctx, resource, env)
	if err != nil {
		return err
	}

	teamID, _ := asset.FirstString("teamId", "team_id", "owningTeam")
	if teamID == "" {
		teamID, _ = resource.FirstString("teamId", "team_id", "owningTeam")
	}
	if teamID == "" {
		return fmt.Errorf("asset %s carries no owning team", assetLink)
	}

	team, err := p.platform.GetTeam(ctx, teamID)
	if err != nil {
		return fmt.Errorf("fetch team %s: %w", teamID, err)
	}
	teamName, _ := team.Get("name").String()

	managers, err := p.collectAccessManagers(ctx, team)
	if err != nil {
		return err
	}
	if len(managers) == 0 {
		logger.Warn("team has no members with the approver role", "team_id", teamID, "role", p.cfg.ApproverRole)
	}

	if err := p.platform.SetApproved(ctx, env.SelfLink, approvedReason); err != nil {
		return fmt.Errorf("approve request on origin platform: %w", err)
	}
	logger.Info("request auto-approved on origin platform")

	appName, _ := resource.FirstString("applicationName", "application_name", "name")
	assetName, _ := asset.FirstString("name", "title")

	requestedFor := ""
	if len(managers) > 0 {
		requestedFor = managers[0]
	}

	variables := map[string]any{
		"requested_for":       requestedFor,
		"need_by_date":        timeNow().AddDate(0, 0, p.cfg.NeedByDays).Format(needByDateLayout),
		"application_name":    appName,
		"api_resource_name":   assetName,
		"api_owner":           teamName,
		"data_governance":     "Internal",
		"dg_class_tags":       "Standard",
		"selflink":            env.SelfLink,
		"approval_state":      "pending",
		"event_id":            rec.ID,
		"event_type":          rec.EventType,
		"team_id":             teamID,
		"api_access_managers": strings.Join(managers, ","),
	}

	number, err := p.catalog.OrderItem(ctx, p.cfg.CatalogItemID, variables)
	if err != nil {
		return fmt.Errorf("order catalog item: %w", err)
	}
	logger.Info("catalog ticket opened", "request_number", number)

	if err := p.store.SetCallback(ctx, rec.ID, "pending", eventstore.CallbackTicketCreated); err != nil {
		return fmt.Errorf("record ticket callback: %w", err)
	}
	return nil
}

// resolveAsset finds the Asset reference on the event or the fetched
// resource and loads it. Falls back to the resource itself when no Asset
// reference exists.
func (p *Processor) resolveAsset(ctx context.Context, resource jsonval.Value, env webhook.Envelope) (jsonval.Value, string, error) {
	assetLink := ""
	for _, ref := range env.References {
		if ref.Kind == referenceKindAsset && ref.SelfLink != "" {
			assetLink = ref.SelfLink
			break
		}
	}
	if assetLink == "" {
		if refs, ok := resource.Get("metadata", "references").Array(); ok {
			for _, ref := range refs {
				kind, _ := ref.Get("kind").String()
				link, _ := ref.Get("selfLink").String()
				if kind == referenceKindAsset && link != "" {
					assetLink = link
					break
				}
			}
		}
	}
	if assetLink == "" {
		return resource, env.SelfLink, nil
	}

	asset, err := p.platform.GetResourceBySelfLink(ctx, assetLink)
	if err != nil {
		return jsonval.Value{}, "", fmt.Errorf("fetch asset %s: %w", assetLink, err)
	}
	return asset, assetLink, nil
}

// collectAccessManagers returns the emails of team members holding the
// approver role, preserving the team's member order.
func (p *Processor) collectAccessManagers(ctx context.Context, team jsonval.Value) ([]string, error) {
	members, ok := team.Get("users").Array()
	if !ok {
		return nil, nil
	}

	var emails []string
	for _, member := range members {
		if !p.hasApproverRole(member) {
			continue
		}

		userID, _ := member.FirstString("id", "userId", "user_id")
		if userID == "" {
			continue
		}

		user, err := p.platform.GetUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("fetch user %s: %w", userID, err)
		}
		if email, ok := user.FirstString("email", "mail"); ok {
			emails = append(emails, email)
		}
	}
	return emails, nil
}

func (p *Processor) hasApproverRole(member jsonval.Value) bool {
	roles, ok := member.Get("roles").Array()
	if !ok {
		return false
	}
	for _, role := range roles {
		if name, _ := role.String(); name == p.cfg.ApproverRole {
			return true
		}
		if name, _ := role.Get("name").String(); name == p.cfg.ApproverRole {
			return true
		}
	}
	return false
}

// relayApproval pushes an external approval decision back onto the origin
// request the approval correlates with.
func (p *Processor) relayApproval(ctx context.Context, rec *eventstore.EventRecord) error {
	logger := p.logger.With("event_id", rec.ID)

	payload, err := jsonval.Parse(rec.Payload)
	if err != nil {
		p.setCallback(ctx, rec.ID, eventstore.CallbackFailedException)
		return fmt.Errorf("parse approval payload: %w", err)
	}

	comments, ok := payload.FirstString("comments", "approval_comments")
	if !ok || comments == "" {
		comments = defaultRelayComments
	}

	correlationID := rec.CorrelationID
	if correlationID == "" {
		correlationID, _ = payload.FirstString("correlationId", "correlation_id")
	}
	if correlationID == "" {
		p.setCallback(ctx, rec.ID, eventstore.CallbackFailedNoRequestID)
		return fmt.Errorf("approval event carries no correlation id")
	}

	origins, err := p.store.FindByCorrelation(ctx, correlationID)
	if err != nil {
		p.setCallback(ctx, rec.ID, eventstore.CallbackFailedException)
		return fmt.Errorf("find originating event: %w", err)
	}
	origin := pickOrigin(origins, rec.ID)
	if origin == nil {
		p.setCallback(ctx, rec.ID, eventstore.CallbackFailedNoRequestID)
		return fmt.Errorf("no originating event for correlation %q", correlationID)
	}

	requestID := originRequestID(origin)
	if requestID == "" {
		p.setCallback(ctx, rec.ID, eventstore.CallbackFailedNoRequestID)
		return fmt.Errorf("originating event %s carries no request id", origin.ID)
	}

	if err := p.store.SetRelated(ctx, rec.ID, origin.ID); err != nil {
		logger.Warn("link to originating event failed", "error", err)
	}

	if p.notifier != nil {
		// Delivery failure never blocks the relay.
		_ = p.notifier.Send(relayNoticeSubject, relayNoticeTemplate, map[string]string{
			"RequestID": requestID,
			"Comments":  comments,
			"EventID":   rec.ID,
		})
	}

	if err := p.platform.UpdateApprovalState(ctx, requestID, relayApprovalState, comments); err != nil {
		p.setCallback(ctx, rec.ID, eventstore.CallbackFailedAPICall)
		return fmt.Errorf("update approval on origin platform: %w", err)
	}

	p.setCallback(ctx, rec.ID, eventstore.CallbackSuccess)
	logger.Info("approval relayed", "request_id", requestID, "correlation_id", correlationID)
	return nil
}

func (p *Processor) setCallback(ctx context.Context, id, status string) {
	if err := p.store.SetCallback(ctx, id, relayApprovalState, status); err != nil {
		p.logger.Error("record callback status failed", "event_id", id, "status", status, "error", err)
	}
}

// pickOrigin returns the newest correlated event that is not the approval
// itself.
func pickOrigin(candidates []*eventstore.EventRecord, selfID string) *eventstore.EventRecord {
	for _, c := range candidates {
		if c.ID != selfID {
			return c
		}
	}
	return nil
}

// originRequestID extracts the origin platform's request identifier from
// the stored opening event.
func originRequestID(origin *eventstore.EventRecord) string {
	payload, err := jsonval.Parse(origin.Payload)
	if err != nil {
		return ""
	}
	if id, ok := payload.FirstString("requestId", "request_id"); ok {
		return id
	}
	if id, ok := payload.Get("payload", "metadata", "id").String(); ok && id != "" {
		return id
	}
	if id, ok := payload.FirstString("id"); ok {
		return id
	}
	return ""
}
