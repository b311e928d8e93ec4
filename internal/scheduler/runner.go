package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hattiebot/hattiebot/internal/core"
	"github.com/hattiebot/hattiebot/internal/store"
)

// ChannelSender delivers a message to a user's connected channel. Runner
// uses it for the "send_message" action type; when delivery fails the
// dispatch is recorded Failed with reason CHANNEL_OFFLINE rather than
// queued (spec.md §4.6 "Actions" — scheduler jobs are not a durable
// message queue). gateway.Router satisfies this by resolving the target
// channel from the user's stored contact preferences.
type ChannelSender interface {
	RouteMessage(ctx context.Context, userID, content, urgency string) error
}

// missedRunGrace bounds how overdue a plan can be at startup before it's
// treated as a normal ready-to-run job rather than missed-run recovery.
const missedRunGrace = 0

// onceLateThreshold is spec.md §4.6's cutoff for attaching a "late by Δ"
// marker to a recovered Once job.
const onceLateThreshold = time.Hour

// recurringMissedThreshold is spec.md §4.6's cutoff past which a recurring
// job is marked Missed and skipped rather than fired once more.
const recurringMissedThreshold = 24 * time.Hour

// Runner checks for due plans and executes them.
type Runner struct {
	DB           *store.DB
	ToolExecutor core.ToolExecutor
	Channels     ChannelSender
	Interval     time.Duration
	stop         chan struct{}
}

func NewRunner(db *store.DB) *Runner {
	return &Runner{
		DB:       db,
		Interval: 1 * time.Minute,
		stop:     make(chan struct{}),
	}
}

// Start recovers missed runs, then begins the background scheduler loop.
func (r *Runner) Start() {
	r.RecoverMissed(context.Background())

	go func() {
		ticker := time.NewTicker(r.Interval)
		defer ticker.Stop()

		log.Println("[SCHEDULER] Started, checking every", r.Interval)

		for {
			select {
			case <-ticker.C:
				r.checkAndRun()
			case <-r.stop:
				log.Println("[SCHEDULER] Stopped")
				return
			}
		}
	}()
}

// Stop halts the scheduler.
func (r *Runner) Stop() {
	close(r.stop)
}

// RecoverMissed scans plans overdue at process start and applies spec.md
// §4.6's missed-run recovery rules: a Once job fires immediately (tagged
// "late by Δ" if more than an hour overdue); a recurring job overdue by up
// to 24h fires once as the most-recently-missed run before its schedule is
// recomputed; a recurring job overdue by more than 24h is marked Missed
// and skipped entirely.
func (r *Runner) RecoverMissed(ctx context.Context) {
	plans, err := r.DB.ClaimDuePlans(ctx, 5*time.Minute)
	if err != nil {
		log.Printf("[SCHEDULER] Error claiming plans during missed-run recovery: %v", err)
		return
	}

	now := time.Now()
	for _, p := range plans {
		var late time.Duration
		if p.NextRunAt != nil {
			late = now.Sub(*p.NextRunAt)
		}
		if late <= missedRunGrace {
			// Not actually overdue at startup; let the normal tick pick it up.
			r.dispatchAndMark(ctx, p)
			continue
		}

		if p.ScheduleType == "once" {
			marker := ""
			if late > onceLateThreshold {
				marker = fmt.Sprintf(" (late by %s)", late.Round(time.Second))
			}
			log.Printf("[SCHEDULER] Missed-run recovery: firing once-plan %d%s", p.ID, marker)
			r.dispatchAndMark(ctx, p)
			continue
		}

		if late > recurringMissedThreshold {
			log.Printf("[SCHEDULER] Missed-run recovery: plan %d missed by %s, marking Missed", p.ID, late.Round(time.Second))
			if err := r.DB.MarkPlanMissed(ctx, p.ID, p.ScheduleType, p.ScheduleValue); err != nil {
				log.Printf("[SCHEDULER] Error marking plan %d missed: %v", p.ID, err)
			}
			continue
		}

		log.Printf("[SCHEDULER] Missed-run recovery: firing overdue recurring plan %d (late by %s)", p.ID, late.Round(time.Second))
		r.dispatchAndMark(ctx, p)
	}
}

func (r *Runner) checkAndRun() {
	ctx := context.Background()
	// Lock for 5 minutes (if crash, other nodes pick up after 5m)
	plans, err := r.DB.ClaimDuePlans(ctx, 5*time.Minute)
	if err != nil {
		log.Printf("[SCHEDULER] Error claiming plans: %v", err)
		return
	}

	for _, p := range plans {
		log.Printf("[SCHEDULER] Executing plan %d: %s (%s)", p.ID, p.Description, p.ActionType)
		r.dispatchAndMark(ctx, p)
	}
}

// dispatchAndMark executes a claimed plan and records the outcome,
// including the CHANNEL_OFFLINE case where dispatch failed without the
// job's schedule advancing being in question.
func (r *Runner) dispatchAndMark(ctx context.Context, p store.ScheduledPlan) {
	channel, _ := actionChannel(p.ActionPayload)
	if err := r.executePlan(ctx, p); err != nil {
		log.Printf("[SCHEDULER] Plan %d dispatch failed: %v", p.ID, err)
		status := "Failed"
		if _, offline := err.(errChannelOffline); offline {
			status = "Missed"
		}
		if aerr := r.DB.RecordDeliveryAttempt(ctx, p.ID, channel, status, err.Error()); aerr != nil {
			log.Printf("[SCHEDULER] Error recording delivery attempt for plan %d: %v", p.ID, aerr)
		}
		if merr := r.DB.MarkPlanFailed(ctx, p.ID); merr != nil {
			log.Printf("[SCHEDULER] Error marking plan %d failed: %v", p.ID, merr)
		}
		return
	}
	if aerr := r.DB.RecordDeliveryAttempt(ctx, p.ID, channel, "Completed", ""); aerr != nil {
		log.Printf("[SCHEDULER] Error recording delivery attempt for plan %d: %v", p.ID, aerr)
	}
	if err := r.DB.MarkPlanRun(ctx, p.ID, p.ScheduleType, p.ScheduleValue); err != nil {
		log.Printf("[SCHEDULER] Error marking plan %d as run: %v", p.ID, err)
	}
}

// actionChannel best-effort extracts a send_message payload's channel field
// for delivery_attempts bookkeeping; other action types have no channel.
func actionChannel(payload string) (string, bool) {
	var p struct {
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", false
	}
	return p.Channel, p.Channel != ""
}

// errChannelOffline marks a send_message dispatch that couldn't reach its
// target channel (spec.md §4.6 "Actions").
type errChannelOffline struct{ channel string }

func (e errChannelOffline) Error() string { return "CHANNEL_OFFLINE: " + e.channel }

func (r *Runner) executePlan(ctx context.Context, p store.ScheduledPlan) error {
	// Inject user_id from the plan into context so tool policies work
	ctx = context.WithValue(ctx, "user_id", p.UserID)

	switch p.ActionType {
	case "remind":
		log.Printf("[SCHEDULER] REMINDER: %s", p.Description)
		// Store as a system message so user sees it on next chat. Two
		// reminders firing back-to-back on the shared "scheduler" thread
		// would otherwise be two consecutive assistant turns; the store
		// rejects that with ErrOrderViolation, which we treat as
		// non-fatal (the reminder still fires, it just isn't recorded
		// as conversation history).
		_, err := r.DB.InsertMessage(ctx, "assistant", "[Scheduled Reminder] "+p.Description, "", "system", "scheduler", "scheduler", "", "", "")
		if err == store.ErrOrderViolation {
			log.Printf("[SCHEDULER] Order violation persisting reminder for plan %d; reminder still dispatched", p.ID)
			return nil
		}
		return err

	case "send_message":
		var payload struct {
			Channel string `json:"channel"`
			UserID  string `json:"user_id"`
			Content string `json:"content"`
			Urgency string `json:"urgency"`
		}
		if err := json.Unmarshal([]byte(p.ActionPayload), &payload); err != nil {
			return fmt.Errorf("invalid send_message payload for plan %d: %w", p.ID, err)
		}
		if r.Channels == nil {
			return errChannelOffline{channel: payload.Channel}
		}
		if payload.UserID == "" {
			payload.UserID = p.UserID
		}
		if err := r.Channels.RouteMessage(ctx, payload.UserID, payload.Content, payload.Urgency); err != nil {
			return errChannelOffline{channel: payload.Channel}
		}
		return nil

	case "execute_tool":
		var payload struct {
			Tool string          `json:"tool"`
			Args json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal([]byte(p.ActionPayload), &payload); err != nil {
			return fmt.Errorf("invalid tool payload for plan %d: %w", p.ID, err)
		}
		log.Printf("[SCHEDULER] Executing tool: %s", payload.Tool)
		if r.ToolExecutor == nil {
			return fmt.Errorf("ToolExecutor not configured")
		}
		result, err := r.ToolExecutor.Execute(ctx, payload.Tool, string(payload.Args))
		if err != nil {
			return fmt.Errorf("tool %s failed: %w", payload.Tool, err)
		}
		log.Printf("[SCHEDULER] Tool %s completed: %s", payload.Tool, result)
		return nil

	default:
		return fmt.Errorf("unknown action type %q", p.ActionType)
	}
}
