package redis

import (
	"fmt"

	"github.com/mcoot/pairlobby/internal/model"
)

// Key prefix for all lobby data
const keyPrefix = "pairlobby"

// playerKey returns the Redis key for a Player record
func playerKey(id model.ConnID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// playersIndexKey returns the Redis key for the SET of registered connections
func playersIndexKey() string {
	return fmt.Sprintf("%s:idx:players", keyPrefix)
}

// roomKey returns the Redis key for the ZSET of a room's members, scored by join sequence
func roomKey(room string) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, room)
}

// memberRoomsKey returns the Redis key for the SET of rooms a connection is in
func memberRoomsKey(id model.ConnID) string {
	return fmt.Sprintf("%s:idx:member_rooms:%s", keyPrefix, id)
}

// joinSeqKey returns the Redis key of the join sequence counter
func joinSeqKey() string {
	return fmt.Sprintf("%s:seq:join", keyPrefix)
}
