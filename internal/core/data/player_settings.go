package data

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlayerSettings are the most recent client settings a player connected with.
type PlayerSettings struct {
	PlayerID            uint64 `gorm:"primaryKey"`
	Locale              string
	ViewDistance        uint8
	ChatMode            int32
	ChatColors          bool
	DisplayedSkinParts  uint8
	MainHand            int32
	EnableTextFiltering bool
	AllowServerListings bool
}

// FindPlayerSettings returns the settings saved for a player, or nil if they
// haven't been saved yet.
func FindPlayerSettings(db *gorm.DB, playerID uint64) (*PlayerSettings, error) {
	var settings PlayerSettings
	err := db.Where("player_id = ?", playerID).First(&settings).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &settings, nil
}

// SavePlayerSettings creates or replaces the settings of a player.
func SavePlayerSettings(db *gorm.DB, settings *PlayerSettings) error {
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(settings).Error
}
