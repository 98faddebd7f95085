package analytics_test

import (
	"time"

	"github.com/okian/expwatch/internal/domain/leveltable"
	"github.com/okian/expwatch/internal/domain/model"
)

// t0 is the reference capture time used across the analytics tests.
var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// fixtureTable spans levels 1..5 with spans 100..500, so level L starts at
// 50*L*(L-1) cumulative exp.
func fixtureTable() *leveltable.Table {
	table, err := leveltable.FromRequirements(1, 0, []int64{100, 200, 300, 400, 500})
	if err != nil {
		panic(err)
	}
	return table
}

func snap(name string, at time.Time, level int, exp int64) model.Snapshot {
	return model.Snapshot{Timestamp: at, Name: name, World: "challenger", Level: level, Exp: exp}
}
