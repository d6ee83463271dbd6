package fetch

import (
	"context"
	"net/url"

	"footstats/pkg/records"
)

// Typed wrappers over the API's read endpoints. Every wrapper returns
// ok=false for an id the API does not know, which the callers treat as
// an empty result rather than a failure.

// CompetitionClubs lists the clubs of one competition season.
func (c *Client) CompetitionClubs(ctx context.Context, competitionID, seasonID string) (records.Raw, bool, error) {
	query := map[string]string{}
	if seasonID != "" {
		query["season_id"] = seasonID
	}
	return c.GetJSON(ctx, "competition_clubs", "/competitions/"+url.PathEscape(competitionID)+"/clubs", query)
}

// ClubProfile fetches one club's profile.
func (c *Client) ClubProfile(ctx context.Context, clubID string) (records.Raw, bool, error) {
	return c.GetJSON(ctx, "club_profile", "/clubs/"+url.PathEscape(clubID)+"/profile", nil)
}

// ClubPlayers lists one club's current squad.
func (c *Client) ClubPlayers(ctx context.Context, clubID string) (records.Raw, bool, error) {
	return c.GetJSON(ctx, "club_players", "/clubs/"+url.PathEscape(clubID)+"/players", nil)
}

// PlayerProfile fetches one player's profile.
func (c *Client) PlayerProfile(ctx context.Context, playerID string) (records.Raw, bool, error) {
	return c.GetJSON(ctx, "player_profile", "/players/"+url.PathEscape(playerID)+"/profile", nil)
}

// PlayerStats fetches one player's per-competition statistics.
func (c *Client) PlayerStats(ctx context.Context, playerID string) (records.Raw, bool, error) {
	return c.GetJSON(ctx, "player_stats", "/players/"+url.PathEscape(playerID)+"/stats", nil)
}

// PlayerMarketValue fetches one player's current value and value
// history.
func (c *Client) PlayerMarketValue(ctx context.Context, playerID string) (records.Raw, bool, error) {
	return c.GetJSON(ctx, "player_market_value", "/players/"+url.PathEscape(playerID)+"/market_value", nil)
}

// PlayerAchievements fetches one player's titles.
func (c *Client) PlayerAchievements(ctx context.Context, playerID string) (records.Raw, bool, error) {
	return c.GetJSON(ctx, "player_achievements", "/players/"+url.PathEscape(playerID)+"/achievements", nil)
}

// PlayerInjuries fetches one player's injury history.
func (c *Client) PlayerInjuries(ctx context.Context, playerID string) (records.Raw, bool, error) {
	return c.GetJSON(ctx, "player_injuries", "/players/"+url.PathEscape(playerID)+"/injuries", nil)
}

// PlayerTransfers fetches one player's transfer history.
func (c *Client) PlayerTransfers(ctx context.Context, playerID string) (records.Raw, bool, error) {
	return c.GetJSON(ctx, "player_transfers", "/players/"+url.PathEscape(playerID)+"/transfers", nil)
}
