package gatewaymcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerPrompts adds the gateway's guided-workflow prompts.
func (s *Server) registerPrompts() {
	s.addStartEngagementPrompt()
	s.addRecordFindingPrompt()
	s.addRecallTechniquesPrompt()
}

// ─────────────────────────────────────────────────────────────────────────
// start_engagement — stand up a target and mission before any testing
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) addStartEngagementPrompt() {
	s.mcp.AddPrompt(
		&mcp.Prompt{
			Name:        "start_engagement",
			Description: "Bootstrap a new testing engagement: create the target, open a mission against it, and set the mission's working context so every subsequent request and action is attributed automatically.",
			Arguments: []*mcp.PromptArgument{
				{Name: "host", Description: "Target host, e.g. example.com", Required: true},
				{Name: "protocol", Description: "Defaults to https", Required: false},
				{Name: "mission_name", Description: "A short human-readable name for this engagement", Required: false},
				{Name: "cookie_profile", Description: "Named cookie profile to authenticate as, if any", Required: false},
			},
		},
		func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			host := req.Params.Arguments["host"]
			if host == "" {
				return nil, fmt.Errorf("'host' argument is required")
			}
			protocol := req.Params.Arguments["protocol"]
			if protocol == "" {
				protocol = "https"
			}
			missionName := req.Params.Arguments["mission_name"]
			if missionName == "" {
				missionName = fmt.Sprintf("%s engagement", host)
			}
			cookieProfile := req.Params.Arguments["cookie_profile"]

			cookieStep := "\n3. Call set_mission_context with the returned mission_id so requests and actions attribute to it automatically."
			if cookieProfile != "" {
				cookieStep = fmt.Sprintf("\n3. Call set_mission_context with the returned mission_id and cookie_profile=%q so requests attribute to it and authenticate automatically.", cookieProfile)
			}

			return &mcp.GetPromptResult{
				Description: fmt.Sprintf("Start engagement against %s", host),
				Messages: []*mcp.PromptMessage{
					{
						Role: "user",
						Content: &mcp.TextContent{
							Text: fmt.Sprintf(`Set up a new engagement against %s://%s.

1. Call create_target with host=%q and protocol=%q.
2. Call create_mission with name=%q and a goal for this engagement.%s

Once this is done, every http_request and record_action you make will attribute to this target and mission automatically — no need to pass target_id or mission_id explicitly unless you're working against more than one target at once.`, protocol, host, host, protocol, missionName, cookieStep),
						},
					},
				},
			}, nil
		},
	)
}

// ─────────────────────────────────────────────────────────────────────────
// record_finding — capture and generalise a discovery mid-mission
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) addRecordFindingPrompt() {
	s.mcp.AddPrompt(
		&mcp.Prompt{
			Name:        "record_finding",
			Description: "After finding something noteworthy, record it against the current mission, update durable target context if it'll matter later, and consider promoting it to the reusable technique library.",
			Arguments: []*mcp.PromptArgument{
				{Name: "summary", Description: "One-line summary of what was found", Required: true},
				{Name: "reusable", Description: "'true' if this generalises beyond the current target", Required: false},
			},
		},
		func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			summary := req.Params.Arguments["summary"]
			if summary == "" {
				return nil, fmt.Errorf("'summary' argument is required")
			}
			reusable := req.Params.Arguments["reusable"] == "true"

			libraryStep := ""
			if reusable {
				libraryStep = "\n4. Call add_to_library with a generalised title and content describing the technique independent of this specific target."
			}

			return &mcp.GetPromptResult{
				Description: "Record a finding",
				Messages: []*mcp.PromptMessage{
					{
						Role: "user",
						Content: &mcp.TextContent{
							Text: fmt.Sprintf(`Record this finding: %q

1. Call record_action with a technique naming what you tried, result=%q, and success="true" if it worked as intended.
2. If this teaches you something durable about the target (not just a one-off), call update_target_context with agent_context describing it.
3. If it's a smaller, situational detail (a header value, a quirk), call add_target_note instead.%s`, summary, summary, libraryStep),
						},
					},
				},
			}, nil
		},
	)
}

// ─────────────────────────────────────────────────────────────────────────
// recall_techniques — search prior work before trying something new
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) addRecallTechniquesPrompt() {
	s.mcp.AddPrompt(
		&mcp.Prompt{
			Name:        "recall_techniques",
			Description: "Before improvising a new approach, check whether a similar situation has already been solved, either in this mission's history or in the reusable technique library.",
			Arguments: []*mcp.PromptArgument{
				{Name: "situation", Description: "What you're trying to do right now", Required: true},
			},
		},
		func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			situation := req.Params.Arguments["situation"]
			if situation == "" {
				return nil, fmt.Errorf("'situation' argument is required")
			}

			return &mcp.GetPromptResult{
				Description: "Recall prior techniques",
				Messages: []*mcp.PromptMessage{
					{
						Role: "user",
						Content: &mcp.TextContent{
							Text: fmt.Sprintf(`You're about to try: %q

1. Call find_similar_techniques with query=%q to see if a comparable action has already been recorded for this or another mission.
2. Call search_library with the same query to check the reusable technique library for a generalised version.
3. Only proceed with a novel approach once you've reviewed both results — reuse what already works before inventing something new.`, situation, situation),
						},
					},
				},
			}, nil
		},
	)
}
