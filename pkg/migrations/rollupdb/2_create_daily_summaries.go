package rollupdb

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/ministryhub/checkin-rollup/pkg/checkinstore/pg"
	mghelper "github.com/ministryhub/checkin-rollup/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if err := mghelper.CreateSchema(ctx, db, &pg.SummaryDao{}); err != nil {
			return err
		}
		// Target of the ON CONFLICT clause of the summary upsert.
		return mghelper.CreateModelCompositeIndex(ctx, db, &pg.SummaryDao{}, true, "date", "ministry_id")
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &pg.SummaryDao{})
	})
}
