package sqlstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// CreateSchema creates the tables and indexes when they are missing. On
// PostgreSQL it also installs the exclusion constraint that rejects
// overlapping non-canceled appointments.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*customerRow)(nil),
		(*appointmentRow)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	_, err := db.NewCreateIndex().
		Model((*appointmentRow)(nil)).
		Index("appointments_start_end_idx").
		Column("start_utc", "end_utc").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	if db.Dialect().Name() == dialect.PG {
		if _, err := db.NewRaw(overlapConstraintDDL).Exec(ctx); err != nil {
			return fmt.Errorf("create overlap constraint: %w", err)
		}
	}
	return nil
}

const overlapConstraintDDL = `
DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conname = 'appointments_no_overlap'
			AND conrelid = 'appointments'::regclass
	) THEN
		ALTER TABLE appointments
			ADD CONSTRAINT appointments_no_overlap
			EXCLUDE USING gist (tstzrange(start_utc, end_utc, '[)') WITH &&)
			WHERE (status <> 'Canceled');
	END IF;
END
$$`
