package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// linkIdentity backs the link_identity tool (spec.md §4.3 "self_link"),
// attaching a second (channel, external_id) pair to the calling user so
// both resolve to the same account going forward.
func (e *Executor) linkIdentity(ctx context.Context, argsJSON string) (string, error) {
	if e.Resolver == nil {
		return "", fmt.Errorf("identity linking is not available")
	}
	userID, err := getUserID(ctx)
	if err != nil {
		return "", err
	}
	var args struct {
		Channel    string `json:"channel"`
		ExternalID string `json:"external_id"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	if args.Channel == "" || args.ExternalID == "" {
		return "", fmt.Errorf("channel and external_id are required")
	}
	if err := e.Resolver.SelfLink(ctx, args.Channel, args.ExternalID, userID); err != nil {
		return "", err
	}
	return fmt.Sprintf(`{"status": "linked", "channel": %q, "external_id": %q}`, args.Channel, args.ExternalID), nil
}

// ackReminder backs the ack_reminder tool, recording a user's
// acknowledgement of a fired reminder (spec.md §6 reminder_acks).
func (e *Executor) ackReminder(ctx context.Context, argsJSON string) (string, error) {
	userID, err := getUserID(ctx)
	if err != nil {
		return "", err
	}
	var args struct {
		PlanID   int64  `json:"plan_id"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	if args.PlanID == 0 {
		return "", fmt.Errorf("plan_id is required")
	}
	if err := e.DB.RecordReminderAck(ctx, args.PlanID, userID, args.Response); err != nil {
		return "", err
	}
	return fmt.Sprintf(`{"status": "acked", "plan_id": %d}`, args.PlanID), nil
}
