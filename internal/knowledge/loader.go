package knowledge

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/postgres"
)

//go:embed diseases.yaml
var embeddedYAML []byte

type document struct {
	Diseases []Entry `yaml:"diseases"`
}

// Parse decodes a YAML document with a top-level "diseases" list.
func Parse(data []byte) (*Static, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing knowledge base: %w", err)
	}
	return NewStatic(doc.Diseases)
}

// Embedded returns the knowledge base compiled into the binary.
func Embedded() *Static {
	s, err := Parse(embeddedYAML)
	if err != nil {
		panic(fmt.Sprintf("knowledge: embedded base is invalid: %v", err))
	}
	return s
}

// LoadFile reads a YAML knowledge base from path.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge base %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadPostgres reads every row of table once. The table holds one row per
// disease:
//
//	CREATE TABLE disease_knowledge (
//	    name            TEXT PRIMARY KEY,
//	    description     TEXT NOT NULL DEFAULT '',
//	    recommendations TEXT[] NOT NULL DEFAULT '{}',
//	    tests           TEXT[] NOT NULL DEFAULT '{}'
//	);
func LoadPostgres(ctx context.Context, db *postgres.Client, table string) (*Static, error) {
	rows, err := db.DB.QueryContext(ctx, selectQuery(table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Description,
			pq.Array(&e.Recommendations), pq.Array(&e.Tests)); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	return NewStatic(entries)
}

func selectQuery(table string) string {
	return "SELECT name, description, recommendations, tests FROM " +
		pq.QuoteIdentifier(table) + " ORDER BY name"
}

// Load opens the knowledge base selected by cfg. db is only used for the
// postgres source and may be nil otherwise.
func Load(ctx context.Context, cfg config.KnowledgeConfig, db *postgres.Client) (*Static, error) {
	switch cfg.Source {
	case "", "embedded":
		return Embedded(), nil
	case "file":
		return LoadFile(cfg.Path)
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("knowledge source postgres needs a database connection")
		}
		if cfg.LoadTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.LoadTimeout)
			defer cancel()
		}
		return LoadPostgres(ctx, db, cfg.Table)
	default:
		return nil, fmt.Errorf("unknown knowledge source %q", cfg.Source)
	}
}
