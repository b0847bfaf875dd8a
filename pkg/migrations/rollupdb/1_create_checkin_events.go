package rollupdb

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/ministryhub/checkin-rollup/pkg/checkinstore/pg"
	mghelper "github.com/ministryhub/checkin-rollup/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if err := mghelper.CreateSchema(ctx, db, &pg.EventDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &pg.EventDao{}, "ministry_id"); err != nil {
			return err
		}
		// Backlog scan and retention reap both filter on (processed, checked_in_at).
		return mghelper.CreateModelCompositeIndex(ctx, db, &pg.EventDao{}, false, "processed", "checked_in_at")
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &pg.EventDao{})
	})
}
