package wiring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hattiebot/hattiebot/internal/store"
)

// SessionSource adapts store.DB's message history to wsgateway's
// sessions.list / sessions.get.
type SessionSource struct{ DB *store.DB }

func (s SessionSource) ListSessions(ctx context.Context, userID string) ([]string, error) {
	return s.DB.ListThreadsBySender(ctx, userID)
}

func (s SessionSource) GetSession(ctx context.Context, sessionKey string, limit int) (interface{}, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.DB.RecentMessages(ctx, limit, sessionKey)
}

// MemorySource adapts store.DB's facts table to wsgateway's memory.*
// method family (spec.md §4.5 knowledge memory).
type MemorySource struct{ DB *store.DB }

func (m MemorySource) Search(ctx context.Context, userID, query string, limit int) (interface{}, error) {
	facts, err := m.DB.SearchFacts(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(facts) > limit {
		facts = facts[:limit]
	}
	return facts, nil
}

func (m MemorySource) Learn(ctx context.Context, userID, category, key, value string, confidence float64) error {
	if confidence <= 0 {
		confidence = 1.0
	}
	return m.DB.SetFactWithConfidence(ctx, userID, key, value, category, confidence)
}

func (m MemorySource) Forget(ctx context.Context, userID, category, key string) error {
	return m.DB.DeleteFact(ctx, userID, category, key)
}

// CronSource adapts store.DB's scheduled_plans table to wsgateway's
// cron.* method family.
type CronSource struct{ DB *store.DB }

func (c CronSource) ListJobs(ctx context.Context, userID string) (interface{}, error) {
	return c.DB.ListPlans(ctx, userID, "")
}

func (c CronSource) AddJob(ctx context.Context, userID string, spec json.RawMessage) (interface{}, error) {
	var p struct {
		Description   string `json:"description"`
		ActionType    string `json:"action_type"`
		ActionPayload string `json:"action_payload"`
		ScheduleType  string `json:"schedule_type"`
		ScheduleValue string `json:"schedule_value"`
	}
	if err := json.Unmarshal(spec, &p); err != nil {
		return nil, err
	}
	var next time.Time
	if p.ScheduleType == "once" {
		t, err := time.Parse(time.RFC3339, p.ScheduleValue)
		if err != nil {
			return nil, fmt.Errorf("once schedule_value must be RFC3339, got %q", p.ScheduleValue)
		}
		next = t
	} else {
		t, err := store.NextFire(p.ScheduleType, p.ScheduleValue, time.Now())
		if err != nil {
			return nil, err
		}
		next = t
	}
	id, err := c.DB.CreatePlan(ctx, userID, p.Description, p.ActionType, p.ActionPayload, p.ScheduleType, p.ScheduleValue, next)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"id": id}, nil
}

func (c CronSource) RemoveJob(ctx context.Context, userID string, jobID string) error {
	var id int64
	if _, err := fmt.Sscanf(jobID, "%d", &id); err != nil {
		return fmt.Errorf("invalid job id %q", jobID)
	}
	return c.DB.DeletePlan(ctx, id)
}
