package database

import "fmt"

// UpsertPlayer inserts or updates a roster entry keyed by its canonical key.
func (db *DB) UpsertPlayer(p Player) (int64, error) {
	var id int64
	err := db.conn.QueryRow(
		`INSERT INTO players (key, name, position, team, aliases, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			name = excluded.name,
			position = excluded.position,
			team = excluded.team,
			aliases = excluded.aliases,
			active = excluded.active
		RETURNING id`,
		p.Key, p.Name, p.Position, p.Team, encodeStrings(p.Aliases), boolInt(p.Active),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting player %q: %w", p.Key, err)
	}
	return id, nil
}

// GetActivePlayers returns the active roster used for name resolution.
func (db *DB) GetActivePlayers() ([]Player, error) {
	rows, err := db.conn.Query(
		"SELECT id, key, name, position, team, aliases, active FROM players WHERE active = 1 ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		var p Player
		var active int
		var aliases *string
		if err := rows.Scan(&p.ID, &p.Key, &p.Name, &p.Position, &p.Team, &aliases, &active); err != nil {
			return nil, err
		}
		p.Aliases = decodeStrings(aliases)
		p.Active = active != 0
		players = append(players, p)
	}
	return players, rows.Err()
}

// CountPlayers returns the roster size.
func (db *DB) CountPlayers() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM players").Scan(&n)
	return n, err
}
