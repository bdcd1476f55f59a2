// Package game declares the example entity types served by the hub
package game

import "gihan9a/braidtrack/pkg/track"

// Type names used in seed files
const (
	WeaponType = "weapon"
	PlayerType = "player"
)

// Weapon is a player's equipped weapon
var Weapon = track.Register(track.NewSchema(WeaponType,
	track.Field{Key: "atk", Default: 10},
	track.Field{Key: "test", Default: 100},
))

// Player is the root entity of a player resource
var Player = track.Register(track.NewSchema(PlayerType,
	track.Field{Key: "name", Default: "NoName"},
	track.Field{Key: "def", Default: 10},
	track.Field{Key: "weapon", Kind: track.KindEntity, Elem: Weapon},
	track.Field{Key: "inventory", Kind: track.KindSequence, Elem: Weapon},
	track.Field{Key: "titles", Kind: track.KindSequence, Default: []string{}},
))

// NewPlayer creates a player with default state
func NewPlayer() *track.Entity {
	return Player.New()
}
