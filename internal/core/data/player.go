package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Player is a user that has logged in at least once, identified by the UUID
// their client sent.
type Player struct {
	ID              uint64 `gorm:"primaryKey"`
	UUID            string `gorm:"unique; not null"`
	Username        string `gorm:"not null"`
	LastAddress     string
	ProtocolVersion int32
	Brand           string
	Logins          int
	FirstLogin      time.Time
	LastLogin       time.Time
}

// FindPlayerByUUID searches for a player with the specified UUID, returning the
// *Player instance if found or nil if there is no match.
func FindPlayerByUUID(db *gorm.DB, uuid string) (*Player, error) {
	var player Player
	err := db.Where("uuid = ?", uuid).First(&player).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &player, nil
}

// RecordLogin creates the player on their first login and otherwise updates
// the record with the details of this one. The stored record is returned.
func RecordLogin(db *gorm.DB, login *Player, at time.Time) (*Player, error) {
	var player *Player
	err := db.Transaction(func(tx *gorm.DB) error {
		existing, err := FindPlayerByUUID(tx, login.UUID)
		if err != nil {
			return err
		}

		if existing == nil {
			player = &Player{
				UUID:            login.UUID,
				Username:        login.Username,
				LastAddress:     login.LastAddress,
				ProtocolVersion: login.ProtocolVersion,
				Logins:          1,
				FirstLogin:      at,
				LastLogin:       at,
			}
			return tx.Create(player).Error
		}

		existing.Username = login.Username
		existing.LastAddress = login.LastAddress
		existing.ProtocolVersion = login.ProtocolVersion
		existing.Logins++
		existing.LastLogin = at
		player = existing
		return tx.Save(existing).Error
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

// UpdateBrand records the client brand a player is connecting with.
func UpdateBrand(db *gorm.DB, uuid, brand string) error {
	return db.Model(&Player{}).Where("uuid = ?", uuid).Update("brand", brand).Error
}
