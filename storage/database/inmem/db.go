package inmemdb

import (
	"sync"

	"github.com/adribv/edutool/core/activity"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/staff"
)

type (
	// DB keeps every table in process memory. Records are stored by value and copied in and out.
	DB struct {
		staff       *staffTable
		permissions *permissionTable
		activities  *activityTable
	}

	staffTable struct {
		sync.RWMutex
		table map[string]staff.Staff
	}

	permissionTable struct {
		sync.RWMutex
		table map[string]permission.Record // {id: record}
		order []string                     // insertion order
	}

	activityTable struct {
		sync.RWMutex
		table map[string]activity.Record
		order []string
	}
)

func Open() (*DB, error) {
	db := &DB{
		staff:       &staffTable{table: make(map[string]staff.Staff)},
		permissions: &permissionTable{table: make(map[string]permission.Record)},
		activities:  &activityTable{table: make(map[string]activity.Record)},
	}
	return db, nil
}

// Reset empties every table.
func (db *DB) Reset() {
	db.staff.Lock()
	db.staff.table = make(map[string]staff.Staff)
	db.staff.Unlock()

	db.permissions.Lock()
	db.permissions.table = make(map[string]permission.Record)
	db.permissions.order = nil
	db.permissions.Unlock()

	db.activities.Lock()
	db.activities.table = make(map[string]activity.Record)
	db.activities.order = nil
	db.activities.Unlock()
}
