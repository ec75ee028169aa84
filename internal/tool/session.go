package tool

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type SwitchProfileRequest struct {
	ProfileID string `json:"profile_id" jsonschema:"the profile to activate"`
}

type SwitchProfileResponse struct {
	ActiveProfileID string `json:"active_profile_id" jsonschema:"the profile now active"`
}

type ClearCacheRequest struct{}

type ClearCacheResponse struct {
	Cleared bool `json:"cleared" jsonschema:"always true on success"`
}

type profileSwitcher interface {
	Switch(profileID string)
	ActiveProfileID() string
}

type cacheClearer interface {
	ClearCache()
}

func NewSession(profiles profileSwitcher, cache cacheClearer) *Session {
	return &Session{
		profiles: profiles,
		cache:    cache,
	}
}

// Session holds the tools that reset engine state: profile switching and
// explicit cache clearing. Both invalidate synchronously before returning.
type Session struct {
	profiles profileSwitcher
	cache    cacheClearer
}

func (t *Session) SwitchProfile(
	_ context.Context,
	req *mcp.CallToolRequest,
	input SwitchProfileRequest,
) (*mcp.CallToolResult, SwitchProfileResponse, error) {
	t.profiles.Switch(input.ProfileID)
	return nil, SwitchProfileResponse{ActiveProfileID: t.profiles.ActiveProfileID()}, nil
}

func (t *Session) ClearCache(
	_ context.Context,
	req *mcp.CallToolRequest,
	input ClearCacheRequest,
) (*mcp.CallToolResult, ClearCacheResponse, error) {
	t.cache.ClearCache()
	return nil, ClearCacheResponse{Cleared: true}, nil
}
