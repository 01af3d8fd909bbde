package forecast

// DefaultChangeContext is used when the current snapshot carries no context.
const DefaultChangeContext = "Position update"

// Diff returns one Change per team whose position differs between the two
// snapshots. Teams missing from previous are skipped. Order follows current.
func Diff(previous, current Snapshot) []Change {
	before := make(map[string]Position, len(previous.Teams))
	for _, team := range previous.Teams {
		before[team.TeamName] = team
	}

	changeContext := current.Context
	if changeContext == "" {
		changeContext = DefaultChangeContext
	}

	changes := make([]Change, 0)
	for _, team := range current.Teams {
		prev, ok := before[team.TeamName]
		if !ok {
			continue
		}
		if prev.Position == team.Position {
			continue
		}
		changes = append(changes, Change{
			TeamName:         team.TeamName,
			PreviousPosition: prev.Position,
			NewPosition:      team.Position,
			PreviousPoints:   prev.Points,
			NewPoints:        team.Points,
			Context:          changeContext,
			Timestamp:        current.Timestamp,
		})
	}
	return changes
}
