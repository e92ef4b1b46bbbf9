package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/mappichat/regions-atlas/src/fileio"
	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/mappichat/regions-atlas/src/utils"
)

const maxInsert int = 65535

// columns per data_points row, bounds each batch under maxInsert parameters
const pointColumns = 5

var ErrDatasetNotFound = errors.New("dataset not found")

func SqlInitialize(connectString string) (*sqlx.DB, error) {
	var err error
	Sqldb, err := sqlx.Connect("postgres", connectString)
	if err != nil {
		return Sqldb, err
	}
	if err = Sqldb.Ping(); err != nil {
		return Sqldb, err
	}
	return Sqldb, nil
}

func CreateTables(db *sqlx.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS datasets (
		id text PRIMARY KEY,
		name text NOT NULL,
		description text NOT NULL DEFAULT '',
		unit text NOT NULL DEFAULT '',
		color_scheme text NOT NULL DEFAULT '',
		created_at timestamptz NOT NULL
	);`); err != nil {
		return err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS data_points (
		dataset_id text REFERENCES datasets (id) ON DELETE CASCADE,
		region_code text,
		region_name text,
		value double precision,
		extra jsonb,
		PRIMARY KEY (dataset_id, region_code, region_name)
	);`); err != nil {
		return err
	}

	return nil
}

type datasetRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Unit        string    `db:"unit"`
	ColorScheme string    `db:"color_scheme"`
	CreatedAt   time.Time `db:"created_at"`
}

type pointRow struct {
	DatasetID  string          `db:"dataset_id"`
	RegionCode string          `db:"region_code"`
	RegionName string          `db:"region_name"`
	Value      sql.NullFloat64 `db:"value"`
	Extra      string          `db:"extra"`
}

// pointRows keeps the last point for a repeated region key. NaN values are
// stored as NULL.
func pointRows(id string, points []project_types.DataPoint) ([]pointRow, error) {
	index := map[[2]string]int{}
	rows := make([]pointRow, 0, len(points))
	for _, p := range points {
		extra, err := json.Marshal(p.Extra)
		if err != nil {
			return nil, err
		}
		row := pointRow{
			DatasetID:  id,
			RegionCode: p.RegionCode,
			RegionName: p.RegionName,
			Value:      sql.NullFloat64{Float64: p.Value, Valid: !math.IsNaN(p.Value)},
			Extra:      string(extra),
		}
		key := [2]string{p.RegionCode, p.RegionName}
		if i, ok := index[key]; ok {
			rows[i] = row
			continue
		}
		index[key] = len(rows)
		rows = append(rows, row)
	}
	return rows, nil
}

type datasetMeta struct {
	ID          string
	Name        string
	Description string
	Unit        string
	ColorScheme string
}

// datasetParams builds the named parameters of a datasets insert.
func datasetParams(id string, data fileio.VisualizationData, createdAt time.Time) (map[string]interface{}, error) {
	params, err := utils.DecodeSnakeCase(datasetMeta{
		ID:          id,
		Name:        data.Name,
		Description: data.Description,
		Unit:        data.Unit,
		ColorScheme: data.ColorScheme,
	})
	if err != nil {
		return nil, err
	}
	params["created_at"] = createdAt
	return params, nil
}

func batches(total int, batchSize int) [][2]int {
	out := [][2]int{}
	for i := 0; i < total; i += batchSize {
		out = append(out, [2]int{i, int(math.Min(float64(total), float64(i+batchSize)))})
	}
	return out
}

// SaveDataset writes a dataset and its points in one transaction and
// returns the new dataset id.
func SaveDataset(db *sqlx.DB, data fileio.VisualizationData) (string, error) {
	id := uuid.NewString()
	rows, err := pointRows(id, data.Data)
	if err != nil {
		return "", err
	}

	tx, err := db.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	params, err := datasetParams(id, data, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if _, err := tx.NamedExec(
		`INSERT INTO datasets (id, name, description, unit, color_scheme, created_at)
		VALUES (:id, :name, :description, :unit, :color_scheme, :created_at)`,
		params,
	); err != nil {
		return "", err
	}

	batchSize := maxInsert / pointColumns
	for _, b := range batches(len(rows), batchSize) {
		if _, err := tx.NamedExec(
			`INSERT INTO data_points (dataset_id, region_code, region_name, value, extra)
			VALUES (:dataset_id, :region_code, :region_name, :value, :extra)`,
			rows[b[0]:b[1]],
		); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	log.Printf("stored dataset %s (%d points)", id, len(rows))
	return id, nil
}

// LoadDataset reads a stored dataset; NULL values come back as NaN.
func LoadDataset(db *sqlx.DB, id string) (fileio.VisualizationData, error) {
	var ds datasetRow
	if err := db.Get(&ds, `SELECT id, name, description, unit, color_scheme, created_at FROM datasets WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fileio.VisualizationData{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
		}
		return fileio.VisualizationData{}, err
	}

	rows := []pointRow{}
	if err := db.Select(&rows, `SELECT dataset_id, region_code, region_name, value, extra FROM data_points WHERE dataset_id = $1 ORDER BY region_code, region_name`, id); err != nil {
		return fileio.VisualizationData{}, err
	}

	points := make([]project_types.DataPoint, len(rows))
	for i, r := range rows {
		points[i] = fromRow(r)
	}
	return fileio.VisualizationData{
		Name:        ds.Name,
		Description: ds.Description,
		Unit:        ds.Unit,
		ColorScheme: ds.ColorScheme,
		Data:        points,
	}, nil
}

func fromRow(r pointRow) project_types.DataPoint {
	p := project_types.DataPoint{RegionCode: r.RegionCode, RegionName: r.RegionName, Value: math.NaN()}
	if r.Value.Valid {
		p.Value = r.Value.Float64
	}
	if len(r.Extra) > 0 {
		extra := map[string]interface{}{}
		if err := json.Unmarshal([]byte(r.Extra), &extra); err == nil && len(extra) > 0 {
			p.Extra = extra
		}
	}
	return p
}

// Store adapts a database handle to the server's dataset interface.
type Store struct {
	DB *sqlx.DB
}

func (s Store) Save(data fileio.VisualizationData) (string, error) {
	return SaveDataset(s.DB, data)
}

func (s Store) Load(id string) (fileio.VisualizationData, error) {
	return LoadDataset(s.DB, id)
}
