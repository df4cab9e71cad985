package domain

const (
	EventNameHighscoreUpdated   = "highscore.updated"
	EventNameLeaderboardUpdated = "leaderboard.updated"
	EventNameUserRegistered     = "user.registered"
)

type EventHighscoreUpdated struct {
	Username  string
	Mode      Mode
	Highscore int
}

func (EventHighscoreUpdated) Name() string { return EventNameHighscoreUpdated }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }

type EventUserRegistered struct {
	User User
}

func (EventUserRegistered) Name() string { return EventNameUserRegistered }
