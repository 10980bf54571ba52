package postgres

import (
	"context"
	"fmt"
	"strings"

	"routesync/internal/adapters/out/postgres/deliveryrepo"
	"routesync/internal/adapters/out/postgres/driverrepo"
	"routesync/internal/adapters/out/postgres/orderrepo"
	"routesync/internal/adapters/out/postgres/packagerepo"
	"routesync/internal/core/ports"

	"gorm.io/gorm"
)

// NotifyChannel is the LISTEN/NOTIFY channel the change triggers publish on.
const NotifyChannel = "routesync_changes"

// Models lists every table owned by this package, in creation order.
func Models() []any {
	return []any{
		&driverrepo.DriverDTO{},
		&orderrepo.OrderDTO{},
		&packagerepo.PackageDTO{},
		&packagerepo.PackageOrderDTO{},
		&deliveryrepo.DeliveryLogDTO{},
	}
}

// The trigger payload carries the table name as stream and the key columns
// named in the trigger arguments, e.g.
// {"stream":"orders","op":"UPDATE","fields":{"id":"…","status":"delivered"}}.
// An UPDATE that changes a key column adds its old value under "old_<column>",
// see ports.PreviousField.
const notifyFunction = `
CREATE OR REPLACE FUNCTION routesync_notify() RETURNS trigger AS $$
DECLARE
	rec    jsonb;
	prev   jsonb;
	fields jsonb := '{}'::jsonb;
	col    text;
BEGIN
	IF TG_OP = 'DELETE' THEN
		rec := to_jsonb(OLD);
	ELSE
		rec := to_jsonb(NEW);
	END IF;
	FOREACH col IN ARRAY TG_ARGV LOOP
		fields := fields || jsonb_build_object(col, rec ->> col);
	END LOOP;
	IF TG_OP = 'UPDATE' THEN
		prev := to_jsonb(OLD);
		FOREACH col IN ARRAY TG_ARGV LOOP
			IF (prev ->> col) IS DISTINCT FROM (rec ->> col) THEN
				fields := fields || jsonb_build_object('old_' || col, prev ->> col);
			END IF;
		END LOOP;
	END IF;
	PERFORM pg_notify('%s', jsonb_build_object(
		'stream', TG_TABLE_NAME,
		'op', TG_OP,
		'fields', fields
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql`

var notifyTriggers = map[ports.Stream][]string{
	ports.StreamOrders:         {"id", "status"},
	ports.StreamDriverPackages: {"id", "driver_id", "package_date"},
	ports.StreamPackageOrders:  {"package_id", "order_id"},
}

// Migrate creates or updates the schema and installs the change triggers.
// It is safe to run repeatedly.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf(notifyFunction, NotifyChannel)).Error; err != nil {
			return fmt.Errorf("create notify function: %w", err)
		}
		for _, stream := range ports.Streams() {
			if err := tx.Exec(dropTrigger(stream)).Error; err != nil {
				return fmt.Errorf("drop %s trigger: %w", stream, err)
			}
			if err := tx.Exec(createTrigger(stream, notifyTriggers[stream])).Error; err != nil {
				return fmt.Errorf("create %s trigger: %w", stream, err)
			}
		}
		return nil
	})
}

func triggerName(stream ports.Stream) string {
	return "routesync_" + string(stream) + "_notify"
}

func dropTrigger(stream ports.Stream) string {
	return fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", triggerName(stream), stream)
}

func createTrigger(stream ports.Stream, columns []string) string {
	quoted := make([]string, 0, len(columns))
	for _, col := range columns {
		quoted = append(quoted, "'"+col+"'")
	}
	return fmt.Sprintf(
		"CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH ROW EXECUTE FUNCTION routesync_notify(%s)",
		triggerName(stream), stream, strings.Join(quoted, ", "),
	)
}
