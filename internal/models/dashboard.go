package models

import "github.com/google/uuid"

// AgentLoad is one agent's slice of the active inbox.
type AgentLoad struct {
	AgentID   uuid.UUID `json:"agent_id"`
	AgentName string    `json:"agent_name"`
	Count     int       `json:"count"`
	Unreplied int       `json:"unreplied"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

type PriorityBreakdown struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// DashboardStats is the aggregate view over active conversations. Agents see
// their own slice, admins the whole system.
type DashboardStats struct {
	TotalConversations      int               `json:"total_conversations"`
	UnrepliedConversations  int               `json:"unreplied_conversations"`
	HighPriorityUnattended  int               `json:"high_priority_unattended"`
	AvgResponseTimeMinutes  float64           `json:"avg_response_time_minutes"`
	ConversationsByPriority PriorityBreakdown `json:"conversations_by_priority"`
	ConversationsByAgent    []AgentLoad       `json:"conversations_by_agent"`
	TopTags                 []TagCount        `json:"top_tags"`
}
