package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const listPointsOfInterest = `-- name: ListPointsOfInterest :many
SELECT id, name, category, description, lat, lng
FROM points_of_interest
ORDER BY created_at, id
`

func (q *Queries) ListPointsOfInterest(ctx context.Context) ([]PointOfInterest, error) {
	rows, err := q.db.Query(ctx, listPointsOfInterest)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PointOfInterest
	for rows.Next() {
		var i PointOfInterest
		if err := rows.Scan(&i.ID, &i.Name, &i.Category, &i.Description, &i.Lat, &i.Lng); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listLatestMeasurements = `-- name: ListLatestMeasurements :many
SELECT sensor_id, lat, lng, value, observed_at
FROM (
  SELECT DISTINCT ON (sensor_id) sensor_id, lat, lng, value, observed_at
  FROM measurements
  WHERE observed_at >= $1
  ORDER BY sensor_id, observed_at DESC
) latest
ORDER BY sensor_id
`

// ListLatestMeasurements returns the newest reading per sensor observed at or after since.
func (q *Queries) ListLatestMeasurements(ctx context.Context, since time.Time) ([]Measurement, error) {
	rows, err := q.db.Query(ctx, listLatestMeasurements, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Measurement
	for rows.Next() {
		var i Measurement
		if err := rows.Scan(&i.SensorID, &i.Lat, &i.Lng, &i.Value, &i.ObservedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listInterventions = `-- name: ListInterventions :many
SELECT id, type, lat, lng, efficiency, created_at
FROM interventions
ORDER BY created_at, id
`

func (q *Queries) ListInterventions(ctx context.Context) ([]Intervention, error) {
	rows, err := q.db.Query(ctx, listInterventions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Intervention
	for rows.Next() {
		var i Intervention
		if err := rows.Scan(&i.ID, &i.Type, &i.Lat, &i.Lng, &i.Efficiency, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertIntervention = `-- name: InsertIntervention :one
INSERT INTO interventions (id, type, lat, lng, efficiency)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, type, lat, lng, efficiency, created_at
`

type InsertInterventionParams struct {
	ID         string
	Type       string
	Lat        float64
	Lng        float64
	Efficiency float64
}

func (q *Queries) InsertIntervention(ctx context.Context, arg InsertInterventionParams) (Intervention, error) {
	row := q.db.QueryRow(ctx, insertIntervention, arg.ID, arg.Type, arg.Lat, arg.Lng, arg.Efficiency)
	var i Intervention
	err := row.Scan(&i.ID, &i.Type, &i.Lat, &i.Lng, &i.Efficiency, &i.CreatedAt)
	return i, err
}

const deleteIntervention = `-- name: DeleteIntervention :execrows
DELETE FROM interventions
WHERE id = $1
`

func (q *Queries) DeleteIntervention(ctx context.Context, id string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteIntervention, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
