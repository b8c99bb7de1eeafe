package database

import (
	"github.com/chachabrian/shupool-backend/internal/models"
	"gorm.io/gorm"
)

// tableChecks are enforced by Postgres as well as by the services, so a
// faulty writer cannot push a ride outside its seat bounds.
var tableChecks = []struct {
	table, name, expr string
}{
	{"rides", "rides_seats_offered_check", "seats_offered > 0"},
	{"rides", "rides_seats_available_check", "seats_available >= 0 AND seats_available <= seats_offered"},
	{"rides", "rides_status_check", "status IN ('OPEN', 'FULL', 'CANCELLED', 'COMPLETED')"},
	{"bookings", "bookings_status_check", "status IN ('CONFIRMED', 'CANCELLED')"},
	{"bookings", "bookings_seats_booked_check", "seats_booked > 0"},
	{"users", "users_user_type_check", "user_type IN ('passenger', 'driver', 'admin')"},
}

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.Ride{},
		&models.Booking{},
	)
	if err != nil {
		return err
	}

	for _, c := range tableChecks {
		if err := db.Exec(`ALTER TABLE ` + c.table + ` DROP CONSTRAINT IF EXISTS ` + c.name).Error; err != nil {
			return err
		}
		if err := db.Exec(`ALTER TABLE ` + c.table + ` ADD CONSTRAINT ` + c.name + ` CHECK (` + c.expr + `)`).Error; err != nil {
			return err
		}
	}
	return nil
}
