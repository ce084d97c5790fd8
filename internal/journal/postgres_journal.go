package journal

import (
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/example/driver-agent/internal/models"
)

// Postgres persists decisions for fleet deployments where agents share
// an analytics database.
type Postgres struct {
	db       *sql.DB
	driverID string
}

func NewPostgres(dsn, driverID string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db, driverID: driverID}, nil
}

func (p *Postgres) Record(d models.OfferDecision) error {
	_, err := p.db.Exec(
		`INSERT INTO offer_decisions(offer_id, driver_id, outcome, reason, decided_at) VALUES($1,$2,$3,$4,$5)`,
		d.OfferID, p.driverID, string(d.Outcome), string(d.Reason), d.DecidedAt)
	return err
}

func (p *Postgres) Close() error { return p.db.Close() }
