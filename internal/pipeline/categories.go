package pipeline

import (
	"context"
	"errors"
	"time"

	"footstats/internal/transform"
	"footstats/pkg/records"
)

// The built-in categories. Names and crawler names follow the catalog
// tables the first scraper deployment created, so a config-less run
// keeps feeding the same warehouse. Specs mirror the upstream payloads:
// per-player payloads arrive wrapped as {"player_id": ..., "players":
// {...}} and per-club squads as {"club_id": ..., "players": {...}}, the
// wrapper being added at fetch time so the raw dumps stay joinable.
func init() {
	Register(Category{
		Name:    "club_profiles",
		Crawler: "club_profile_crawler",
		Need:    NeedClubs,
		Fetch:   fetchClubProfiles,
		Spec: transform.Spec{
			Category: "club_profiles",
			Columns: []transform.Column{
				{Name: "club_seasonId", Path: "seasonId"},
				{Name: "club_updatedAt", Path: "updatedAt", Transform: transform.TransformTimestamp},
			},
			Expand: &transform.Expand{
				Path: "clubs",
				Columns: []transform.Column{
					{Name: "club_id", Path: "id"},
					{Name: "club_name", Path: "name"},
				},
			},
		},
	})

	Register(Category{
		Name:    "players_data",
		Crawler: "players_data_crawler",
		Need:    NeedPlayers,
		Fetch:   fetchPlayersData,
		Spec: transform.Spec{
			Category: "players_data",
			Columns: []transform.Column{
				{Name: "player_updatedAt", Path: "players.updatedAt", Transform: transform.TransformTimestamp},
			},
			Expand: &transform.Expand{
				Path: "players.players",
				Columns: []transform.Column{
					{Name: "player_id", Path: "id"},
					{Name: "player_name", Path: "name"},
					{Name: "player_position", Path: "position"},
					{Name: "player_dateOfBirth", Path: "dateOfBirth", Transform: transform.TransformDate},
					{Name: "player_age", Path: "age", Transform: transform.TransformInteger},
					{Name: "player_nationality", Path: "nationality", Multi: transform.MultiJoin},
					{Name: "player_height", Path: "height", Transform: transform.TransformHeight},
					{Name: "player_foot", Path: "foot"},
					{Name: "player_joinedOn", Path: "joinedOn", Transform: transform.TransformDate},
					{Name: "player_signedFrom", Path: "signedFrom"},
					{Name: "player_contract", Path: "contract", Transform: transform.TransformDate},
					{Name: "player_marketValue", Path: "marketValue", Transform: transform.TransformCurrency},
					{Name: "player_status", Path: "status"},
				},
			},
		},
	})

	Register(Category{
		Name:    "players_profile",
		Crawler: "player_profile_crawler",
		Need:    NeedPlayers,
		Fetch:   fetchPlayersProfile,
		Spec: transform.Spec{
			Category: "players_profile",
			Columns: []transform.Column{
				{Name: "player_id", Path: "player_id"},
				{Name: "player_name", Path: "players.name"},
				{Name: "player_dateOfBirth", Path: "players.dateOfBirth", Transform: transform.TransformDate},
				{Name: "player_placeOfBirth_city", Path: "players.placeOfBirth.city"},
				{Name: "player_placeOfBirth_country", Path: "players.placeOfBirth.country"},
				{Name: "player_age", Path: "players.age", Transform: transform.TransformInteger},
				{Name: "player_height", Path: "players.height", Transform: transform.TransformHeight},
				{Name: "player_citizenship", Path: "players.citizenship", Multi: transform.MultiColumns},
				{Name: "player_position_main", Path: "players.position.main"},
				{Name: "player_position_other", Path: "players.position.other", Multi: transform.MultiColumns},
				{Name: "player_foot", Path: "players.foot"},
				{Name: "player_shirtNumber", Path: "players.shirtNumber", Transform: transform.TransformShirtNumber},
				{Name: "player_club_id", Path: "players.club.id"},
				{Name: "player_club_name", Path: "players.club.name"},
				{Name: "player_club_joined", Path: "players.club.joined", Transform: transform.TransformDate},
				{Name: "player_club_contractExpires", Path: "players.club.contractExpires", Transform: transform.TransformDate},
				{Name: "player_marketValue", Path: "players.marketValue", Transform: transform.TransformCurrency},
				{Name: "player_agent_name", Path: "players.agent.name"},
				{Name: "player_updatedAt", Path: "players.updatedAt", Transform: transform.TransformTimestamp},
			},
		},
	})

	Register(Category{
		Name:    "player_stats",
		Crawler: "player_stats_crawler",
		Need:    NeedPlayers,
		Fetch:   fetchPlayerStats,
		Spec: transform.Spec{
			Category: "player_stats",
			Columns: []transform.Column{
				{Name: "player_id", Path: "player_id"},
				{Name: "player_updatedAt", Path: "players.updatedAt", Transform: transform.TransformTimestamp},
			},
			Expand: &transform.Expand{
				Path: "players.stats",
				Columns: []transform.Column{
					{Name: "player_competitionId", Path: "competitionId"},
					{Name: "player_competitionName", Path: "competitionName"},
					{Name: "player_seasonId", Path: "seasonId"},
					{Name: "player_clubId", Path: "clubId"},
					{Name: "player_appearances", Path: "appearances", Transform: transform.TransformInteger},
					{Name: "player_goals", Path: "goals", Transform: transform.TransformInteger},
					{Name: "player_assists", Path: "assists", Transform: transform.TransformInteger},
					{Name: "player_yellowCards", Path: "yellowCards", Transform: transform.TransformInteger},
					{Name: "player_secondYellowCards", Path: "secondYellowCards", Transform: transform.TransformInteger},
					{Name: "player_redCards", Path: "redCards", Transform: transform.TransformInteger},
					{Name: "player_goalsConceded", Path: "goalsConceded", Transform: transform.TransformInteger},
					{Name: "player_cleanSheets", Path: "cleanSheets", Transform: transform.TransformInteger},
					{Name: "player_minutesPlayed", Path: "minutesPlayed", Transform: transform.TransformMinutes},
				},
			},
		},
	})

	Register(Category{
		Name:    "players_achievements",
		Crawler: "player_achievements_crawler",
		Need:    NeedPlayers,
		Fetch:   fetchPlayersAchievements,
		Spec: transform.Spec{
			Category: "players_achievements",
			Columns: []transform.Column{
				{Name: "player_id", Path: "player_id"},
				{Name: "player_updatedAt", Path: "players.updatedAt", Transform: transform.TransformTimestamp},
			},
			Expand: &transform.Expand{
				Path: "players.achievements",
				Columns: []transform.Column{
					{Name: "player_achievements_title", Path: "title"},
					{Name: "player_achievements_count", Path: "count", Transform: transform.TransformInteger},
					{Name: "player_achievements_details", Path: "details"},
				},
			},
		},
	})

	Register(Category{
		Name:    "players_injuries",
		Crawler: "player_injuries_crawler",
		Need:    NeedPlayers,
		Fetch:   fetchPlayersInjuries,
		Spec: transform.Spec{
			Category: "players_injuries",
			Columns: []transform.Column{
				{Name: "player_id", Path: "player_id"},
				{Name: "player_updatedAt", Path: "players.updatedAt", Transform: transform.TransformTimestamp},
			},
			Expand: &transform.Expand{
				Path: "players.injuries",
				Columns: []transform.Column{
					{Name: "player_season", Path: "season"},
					{Name: "player_problem", Path: "problem"},
					{Name: "player_from", Path: "fromDate", Transform: transform.TransformDate},
					{Name: "player_until", Path: "untilDate", Transform: transform.TransformDate},
					{Name: "player_days", Path: "days", Transform: transform.TransformDays},
					{Name: "player_gamesMissed", Path: "gamesMissed", Transform: transform.TransformInteger},
					{Name: "player_gamesMissedClubs", Path: "gamesMissedClubs", Multi: transform.MultiJoin},
				},
			},
		},
	})

	Register(Category{
		Name:    "players_market_value",
		Crawler: "player_market_value_crawler",
		Need:    NeedPlayers,
		Fetch:   fetchPlayersMarketValue,
		Spec: transform.Spec{
			Category: "players_market_value",
			Columns: []transform.Column{
				{Name: "player_id", Path: "player_id"},
				{Name: "player_age", Path: "players.age", Transform: transform.TransformInteger},
				{Name: "player_marketValue", Path: "players.marketValue", Transform: transform.TransformCurrency},
				{Name: "player_ranking", Path: "players.ranking"},
				{Name: "player_ranking_worldwide", Path: "players.ranking.worldwide", Transform: transform.TransformFloat},
				{Name: "player_updatedAt", Path: "players.updatedAt", Transform: transform.TransformTimestamp},
			},
			Expand: &transform.Expand{
				Path: "players.marketValueHistory",
				Columns: []transform.Column{
					{Name: "player_date", Path: "date", Transform: transform.TransformDate},
					{Name: "player_clubName", Path: "clubName"},
					{Name: "player_historical_marketValue", Path: "marketValue", Transform: transform.TransformCurrency},
					{Name: "player_value", Path: "value", Transform: transform.TransformCurrency},
				},
			},
		},
	})

	Register(Category{
		Name:    "players_transfers",
		Crawler: "player_transfers_crawler",
		Need:    NeedPlayers,
		Fetch:   fetchPlayersTransfers,
		Spec: transform.Spec{
			Category: "players_transfers",
			Columns: []transform.Column{
				{Name: "player_id", Path: "player_id"},
				{Name: "player_updatedAt", Path: "players.updatedAt", Transform: transform.TransformTimestamp},
			},
			Expand: &transform.Expand{
				Path: "players.transfers",
				Columns: []transform.Column{
					{Name: "transaction_id", Path: "id"},
					{Name: "player_season", Path: "season"},
					{Name: "player_date", Path: "date", Transform: transform.TransformDate},
					{Name: "player_clubFrom_id", Path: "clubFrom.id"},
					{Name: "player_clubFrom_name", Path: "clubFrom.name"},
					{Name: "player_clubTo_id", Path: "clubTo.id"},
					{Name: "player_clubTo_name", Path: "clubTo.name"},
					{Name: "player_marketValue", Path: "marketValue", Transform: transform.TransformCurrency},
					{Name: "player_fee", Path: "fee"},
					{Name: "player_upcoming", Path: "upcoming"},
				},
			},
		},
	})

	Register(Category{
		Name:    "league_table",
		Table:   "league_data",
		Crawler: "league_data_crawler",
		Need:    NeedNone,
		Fetch:   fetchLeagueTable,
		Spec: transform.Spec{
			Category: "league_table",
			Columns: []transform.Column{
				{Name: "position", Path: "position", Transform: transform.TransformInteger},
				{Name: "club_name", Path: "club_name"},
				{Name: "matches_played", Path: "matches_played", Transform: transform.TransformInteger},
				{Name: "wins", Path: "wins", Transform: transform.TransformInteger},
				{Name: "draws", Path: "draws", Transform: transform.TransformInteger},
				{Name: "losses", Path: "losses", Transform: transform.TransformInteger},
				{Name: "goals", Path: "goals"},
				{Name: "goals_scored", Path: "goals", Transform: transform.TransformGoalsScored},
				{Name: "goals_conceded", Path: "goals", Transform: transform.TransformGoalsConceded},
				{Name: "goal_difference", Path: "goal_difference", Transform: transform.TransformInteger},
				{Name: "points", Path: "points", Transform: transform.TransformInteger},
				{Name: "conference", Path: "conference"},
				{Name: "year", Path: "year"},
				{Name: "league_updated_at", Path: "league_updated_at", Transform: transform.TransformTimestamp},
			},
		},
	})
}

func fetchClubProfiles(ctx context.Context, env *Env) ([]records.Raw, error) {
	if env.Roster == nil || env.Roster.Competition == nil {
		return nil, errors.New("no competition clubs payload in roster")
	}
	return []records.Raw{env.Roster.Competition}, nil
}

func fetchPlayersData(ctx context.Context, env *Env) ([]records.Raw, error) {
	if env.Roster == nil {
		return nil, errors.New("no roster")
	}
	return env.Roster.ClubPlayers, nil
}

func fetchPlayersProfile(ctx context.Context, env *Env) ([]records.Raw, error) {
	return perPlayer(ctx, env, env.API.PlayerProfile)
}

func fetchPlayerStats(ctx context.Context, env *Env) ([]records.Raw, error) {
	return perPlayer(ctx, env, env.API.PlayerStats)
}

func fetchPlayersAchievements(ctx context.Context, env *Env) ([]records.Raw, error) {
	return perPlayer(ctx, env, env.API.PlayerAchievements)
}

func fetchPlayersInjuries(ctx context.Context, env *Env) ([]records.Raw, error) {
	return perPlayer(ctx, env, env.API.PlayerInjuries)
}

func fetchPlayersMarketValue(ctx context.Context, env *Env) ([]records.Raw, error) {
	return perPlayer(ctx, env, env.API.PlayerMarketValue)
}

func fetchPlayersTransfers(ctx context.Context, env *Env) ([]records.Raw, error) {
	return perPlayer(ctx, env, env.API.PlayerTransfers)
}

func fetchLeagueTable(ctx context.Context, env *Env) ([]records.Raw, error) {
	if env.League == nil {
		return nil, errors.New("no standings scraper configured")
	}
	return env.League.Standings(ctx, env.Season)
}

// perPlayer fans one endpoint across the roster's player ids. A player
// the API no longer knows or fails on is logged and skipped so the rest
// of the league still loads; only context cancellation stops the walk.
func perPlayer(ctx context.Context, env *Env, call func(context.Context, string) (records.Raw, bool, error)) ([]records.Raw, error) {
	if env.Roster == nil {
		return nil, errors.New("no roster")
	}
	if env.API == nil {
		return nil, errors.New("no api client configured")
	}

	out := make([]records.Raw, 0, len(env.Roster.PlayerIDs))
	for _, id := range env.Roster.PlayerIDs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		start := time.Now()
		resp, ok, err := call(ctx, id)
		if err != nil {
			env.logf("warn=player_fetch_failed player=%s err=%v", id, err)
			continue
		}
		if !ok {
			continue
		}
		if env.Debug {
			env.logf("stage=player_fetch player=%s duration=%s", id, time.Since(start).Truncate(time.Millisecond))
		}
		out = append(out, records.Raw{"player_id": id, "players": resp})
	}
	return out, nil
}
