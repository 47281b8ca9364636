package api

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/buildboard/kit"
	"github.com/hazyhaar/buildboard/signup"
)

type statsReq struct{}

type statsResp struct {
	Total       int            `json:"total"`
	ByRole      map[string]int `json:"by_role"`
	EventsLast  map[string]int `json:"events_last_24h"`
	GeneratedAt string         `json:"generated_at"`
}

type recentReq struct {
	Limit int `json:"limit"`
}

// RegisterMCP adds the admin tools to srv. Every call is audited.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "buildboard_waitlist_stats",
		Description: "Waitlist signups per role plus business event counts for the last 24 hours.",
		InputSchema: kit.ObjectSchema(map[string]any{}, nil),
	}, kit.Chain(s.audit.Middleware("mcp", "waitlist_stats"))(s.waitlistStats), kit.DecodeArgs[statsReq]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "buildboard_recent_referrals",
		Description: "Most recent referrals, newest first.",
		InputSchema: kit.ObjectSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max rows (default 20, max 200)"},
		}, nil),
	}, kit.Chain(s.audit.Middleware("mcp", "recent_referrals"))(s.recentReferrals), kit.DecodeArgs[recentReq]())
}

func (s *Server) waitlistStats(ctx context.Context, _ any) (any, error) {
	counts, err := s.store.CountWaitlistByRole(ctx)
	if err != nil {
		return nil, err
	}
	byRole := make(map[string]int, len(signup.Roles))
	for _, role := range signup.Roles {
		byRole[role] = 0
	}
	total := 0
	for role, n := range counts {
		byRole[role] = n
		total += n
	}
	now := time.Now()
	events, err := s.events.CountEvents(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	return statsResp{Total: total, ByRole: byRole, EventsLast: events, GeneratedAt: now.UTC().Format(time.RFC3339)}, nil
}

func (s *Server) recentReferrals(ctx context.Context, req any) (any, error) {
	limit := req.(*recentReq).Limit
	switch {
	case limit <= 0:
		limit = 20
	case limit > 200:
		limit = 200
	}
	return s.store.ListReferrals(ctx, limit, 0)
}
