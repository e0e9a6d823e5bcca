package schedule

type scoreboardEnvelope struct {
	Leagues []scoreboardLeague `json:"leagues"`
	Events  []scoreboardEvent  `json:"events"`
}

type scoreboardLeague struct {
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name"`
}

type scoreboardEvent struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	ShortName    string             `json:"shortName"`
	Date         string             `json:"date"`
	Status       eventStatus        `json:"status"`
	Competitions []eventCompetition `json:"competitions"`
}

type eventStatus struct {
	Type statusType `json:"type"`
}

type statusType struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Completed bool   `json:"completed"`
}

type eventCompetition struct {
	Competitors []competitor `json:"competitors"`
}

type competitor struct {
	HomeAway string         `json:"homeAway"`
	Team     competitorTeam `json:"team"`
}

type competitorTeam struct {
	DisplayName      string `json:"displayName"`
	ShortDisplayName string `json:"shortDisplayName"`
	Name             string `json:"name"`
	Logo             string `json:"logo"`
}
