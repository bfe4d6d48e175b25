package repository

import (
	"strings"

	"github.com/interpolis/tourpoule/internal/scoring"
)

// schema is written in the subset of SQL shared by SQLite and PostgreSQL.
// {{serial}} expands to the dialect's auto-increment primary key.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS riders (
		id {{serial}},
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		team TEXT NOT NULL DEFAULT '',
		nationality TEXT NOT NULL DEFAULT '',
		photo_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS stages (
		id {{serial}},
		sequence INTEGER NOT NULL UNIQUE,
		start_location TEXT NOT NULL DEFAULT '',
		finish_location TEXT NOT NULL DEFAULT '',
		stage_date TEXT NOT NULL DEFAULT '',
		distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
		neutralized BOOLEAN NOT NULL DEFAULT FALSE,
		cancelled BOOLEAN NOT NULL DEFAULT FALSE,
		is_final BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS stage_results (
		stage_id INTEGER NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
		rider_id INTEGER NOT NULL REFERENCES riders(id),
		position INTEGER,
		time_seconds INTEGER,
		gap TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (stage_id, rider_id)
	)`,
	`CREATE TABLE IF NOT EXISTS jersey_wearers (
		stage_id INTEGER NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
		jersey_type TEXT NOT NULL,
		rider_id INTEGER NOT NULL REFERENCES riders(id),
		PRIMARY KEY (stage_id, jersey_type)
	)`,
	`CREATE TABLE IF NOT EXISTS final_positions (
		position INTEGER PRIMARY KEY,
		rider_id INTEGER NOT NULL UNIQUE REFERENCES riders(id)
	)`,
	`CREATE TABLE IF NOT EXISTS final_jerseys (
		jersey_type TEXT PRIMARY KEY,
		rider_id INTEGER NOT NULL REFERENCES riders(id)
	)`,
	`CREATE TABLE IF NOT EXISTS participants (
		id {{serial}},
		public_id TEXT NOT NULL UNIQUE,
		team_name TEXT NOT NULL,
		team_name_key TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		opt_in BOOLEAN NOT NULL DEFAULT FALSE,
		subject TEXT UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS team_riders (
		participant_id INTEGER NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
		rider_id INTEGER NOT NULL REFERENCES riders(id),
		slot_type TEXT NOT NULL,
		slot_number INTEGER NOT NULL,
		state TEXT NOT NULL,
		active_from INTEGER NOT NULL DEFAULT 0,
		inactive_from INTEGER,
		PRIMARY KEY (participant_id, rider_id),
		UNIQUE (participant_id, slot_type, slot_number)
	)`,
	`CREATE TABLE IF NOT EXISTS scoring_rules (
		id {{serial}},
		kind TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		jersey_type TEXT NOT NULL DEFAULT '',
		points INTEGER NOT NULL,
		UNIQUE (kind, position, jersey_type)
	)`,
	`CREATE TABLE IF NOT EXISTS stage_points (
		participant_id INTEGER NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
		stage_id INTEGER NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
		points INTEGER NOT NULL,
		PRIMARY KEY (participant_id, stage_id)
	)`,
	`CREATE TABLE IF NOT EXISTS rider_points (
		participant_id INTEGER NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
		stage_id INTEGER NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
		rider_id INTEGER NOT NULL REFERENCES riders(id),
		reason TEXT NOT NULL,
		points INTEGER NOT NULL,
		PRIMARY KEY (participant_id, stage_id, rider_id, reason)
	)`,
	`CREATE TABLE IF NOT EXISTS final_points (
		participant_id INTEGER NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
		rider_id INTEGER NOT NULL REFERENCES riders(id),
		reason TEXT NOT NULL,
		points INTEGER NOT NULL,
		PRIMARY KEY (participant_id, rider_id, reason)
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_team_riders_rider ON team_riders(rider_id)`,
	`CREATE INDEX IF NOT EXISTS idx_stage_results_rider ON stage_results(rider_id)`,
	`CREATE INDEX IF NOT EXISTS idx_rider_points_rider ON rider_points(rider_id)`,
}

// Setting keys.
const (
	SettingRegistrationOpen = "registration_open"
	SettingRosterLocked     = "roster_locked"
)

func (r *Repository) serialType() string {
	if r.Dialect() == DialectPostgres {
		return "SERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	for _, stmt := range schema {
		if _, err := r.db.Exec(strings.ReplaceAll(stmt, "{{serial}}", r.serialType())); err != nil {
			return err
		}
	}

	// Insert default settings if not exists
	defaultSettings := map[string]string{
		SettingRegistrationOpen: "true",
		SettingRosterLocked:     "false",
	}
	for key, value := range defaultSettings {
		if _, err := r.db.Exec(r.rebind(`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`), key, value); err != nil {
			return err
		}
	}

	// Seed the rule table once; admins retune it afterwards.
	var ruleCount int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM scoring_rules`).Scan(&ruleCount); err != nil {
		return err
	}
	if ruleCount == 0 {
		for _, rule := range scoring.DefaultRules() {
			if _, err := r.db.Exec(r.rebind(`INSERT INTO scoring_rules (kind, position, jersey_type, points) VALUES (?, ?, ?, ?)`),
				rule.Kind, rule.Position, string(rule.JerseyType), rule.Points); err != nil {
				return err
			}
		}
	}

	return nil
}
