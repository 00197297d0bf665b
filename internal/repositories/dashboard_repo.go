package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primaruang/realty-crm-be/internal/models"
)

type DashboardRepo interface {
	// Stats aggregates the active inbox. A nil agentID covers the whole
	// system; otherwise everything is scoped to that agent's conversations.
	Stats(ctx context.Context, agentID *uuid.UUID) (*models.DashboardStats, error)
}

type dashboardRepo struct {
	db *gorm.DB
}

func NewDashboardRepo(db *gorm.DB) DashboardRepo {
	return &dashboardRepo{db: db}
}

// A conversation counts as unreplied when its latest message came from the
// lead. ROW_NUMBER picks the latest message per conversation in one scan.
const dashboardSummarySQL = `
	WITH last_msg AS (
		SELECT
			m.conversation_id,
			m.sender_type,
			ROW_NUMBER() OVER (
				PARTITION BY m.conversation_id
				ORDER BY m.created_at DESC
			) AS rn
		FROM messages m
	)
	SELECT
		COUNT(*)::int                                          AS total_conversations,
		COUNT(*) FILTER (WHERE lm.sender_type = 'lead')::int   AS unreplied_conversations,
		COUNT(*) FILTER (
			WHERE c.ai_priority = 'high' AND lm.sender_type = 'lead'
		)::int                                                 AS high_priority_unattended
	FROM conversations c
	LEFT JOIN last_msg lm ON lm.conversation_id = c.id AND lm.rn = 1
	WHERE c.status = 'active'
	  AND (?::uuid IS NULL OR c.assigned_agent_id = ?)
`

const dashboardByPrioritySQL = `
	SELECT
		COALESCE(c.ai_priority, 'medium') AS priority,
		COUNT(*)::int                     AS count
	FROM conversations c
	WHERE c.status = 'active'
	  AND (?::uuid IS NULL OR c.assigned_agent_id = ?)
	GROUP BY c.ai_priority
`

const dashboardByAgentSQL = `
	WITH last_msg AS (
		SELECT
			m.conversation_id,
			m.sender_type,
			ROW_NUMBER() OVER (
				PARTITION BY m.conversation_id
				ORDER BY m.created_at DESC
			) AS rn
		FROM messages m
	)
	SELECT
		u.id                                                    AS agent_id,
		u.name                                                  AS agent_name,
		COUNT(c.id)::int                                        AS count,
		COUNT(c.id) FILTER (WHERE lm.sender_type = 'lead')::int AS unreplied
	FROM conversations c
	INNER JOIN users u ON u.id = c.assigned_agent_id
	LEFT JOIN last_msg lm ON lm.conversation_id = c.id AND lm.rn = 1
	WHERE c.status = 'active'
	  AND (?::uuid IS NULL OR c.assigned_agent_id = ?)
	GROUP BY u.id, u.name
	ORDER BY count DESC
`

const dashboardTopTagsSQL = `
	SELECT tag, COUNT(*)::int AS count
	FROM (
		SELECT UNNEST(c.ai_tags) AS tag
		FROM conversations c
		WHERE c.status = 'active'
		  AND c.ai_tags != '{}'
		  AND (?::uuid IS NULL OR c.assigned_agent_id = ?)
	) expanded
	GROUP BY tag
	ORDER BY count DESC, tag ASC
	LIMIT 10
`

// LAG pairs each agent message with the message before it; only lead->agent
// transitions count as a response.
const dashboardAvgResponseSQL = `
	WITH message_pairs AS (
		SELECT
			m.sender_type,
			m.created_at,
			LAG(m.sender_type) OVER (
				PARTITION BY m.conversation_id
				ORDER BY m.created_at ASC
			) AS prev_sender_type,
			LAG(m.created_at) OVER (
				PARTITION BY m.conversation_id
				ORDER BY m.created_at ASC
			) AS prev_created_at
		FROM messages m
		INNER JOIN conversations c ON c.id = m.conversation_id
		WHERE c.status = 'active'
		  AND (?::uuid IS NULL OR c.assigned_agent_id = ?)
	)
	SELECT COALESCE(
		ROUND(
			AVG(EXTRACT(EPOCH FROM (created_at - prev_created_at)) / 60.0)::numeric,
			1
		),
		0
	)::float AS avg_response_time_minutes
	FROM message_pairs
	WHERE sender_type = 'agent'
	  AND prev_sender_type = 'lead'
`

func (r *dashboardRepo) Stats(ctx context.Context, agentID *uuid.UUID) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{
		ConversationsByAgent: []models.AgentLoad{},
		TopTags:              []models.TagCount{},
	}

	var summary struct {
		TotalConversations     int
		UnrepliedConversations int
		HighPriorityUnattended int
	}
	if err := r.db.WithContext(ctx).Raw(dashboardSummarySQL, agentID, agentID).Scan(&summary).Error; err != nil {
		return nil, fmt.Errorf("dashboard summary: %w", err)
	}
	stats.TotalConversations = summary.TotalConversations
	stats.UnrepliedConversations = summary.UnrepliedConversations
	stats.HighPriorityUnattended = summary.HighPriorityUnattended

	var priorities []struct {
		Priority string
		Count    int
	}
	if err := r.db.WithContext(ctx).Raw(dashboardByPrioritySQL, agentID, agentID).Scan(&priorities).Error; err != nil {
		return nil, fmt.Errorf("dashboard priorities: %w", err)
	}
	for _, row := range priorities {
		switch row.Priority {
		case models.PriorityHigh:
			stats.ConversationsByPriority.High = row.Count
		case models.PriorityMedium:
			stats.ConversationsByPriority.Medium = row.Count
		case models.PriorityLow:
			stats.ConversationsByPriority.Low = row.Count
		}
	}

	if err := r.db.WithContext(ctx).Raw(dashboardByAgentSQL, agentID, agentID).Scan(&stats.ConversationsByAgent).Error; err != nil {
		return nil, fmt.Errorf("dashboard agents: %w", err)
	}

	if err := r.db.WithContext(ctx).Raw(dashboardTopTagsSQL, agentID, agentID).Scan(&stats.TopTags).Error; err != nil {
		return nil, fmt.Errorf("dashboard tags: %w", err)
	}

	if err := r.db.WithContext(ctx).Raw(dashboardAvgResponseSQL, agentID, agentID).Scan(&stats.AvgResponseTimeMinutes).Error; err != nil {
		return nil, fmt.Errorf("dashboard response time: %w", err)
	}

	return stats, nil
}
