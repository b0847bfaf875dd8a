package rollupdb

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/ministryhub/checkin-rollup/pkg/checkinstore/pg"
	mghelper "github.com/ministryhub/checkin-rollup/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		// Member history reads filter on member_id over a checked_in_at range.
		return mghelper.CreateModelCompositeIndex(ctx, db, &pg.EventDao{}, false, "member_id", "checked_in_at")
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewDropIndex().
			Model((*pg.EventDao)(nil)).
			Index("idx_checkin_events_member_id_checked_in_at").
			IfExists().
			Exec(ctx)
		return err
	})
}
