package leaderboard

import "turtlerace/internal/race"

// broadcaster is the shape of orchestrator.Broadcaster, duck-typed here so
// this package never needs to import internal/orchestrator.
type broadcaster interface {
	Broadcast(snap race.Snapshot)
	ClearSnapshot()
}

// TrackingBroadcaster wraps a Broadcaster so every published snapshot also
// refreshes the live Standings view before being forwarded unchanged. It
// satisfies orchestrator.Broadcaster itself, so it can be handed to
// orchestrator.New in place of the bus directly.
type TrackingBroadcaster struct {
	Standings *Standings
	Next      broadcaster
}

func (b TrackingBroadcaster) Broadcast(snap race.Snapshot) {
	b.Standings.Update(snap.Turtles)
	b.Next.Broadcast(snap)
}

func (b TrackingBroadcaster) ClearSnapshot() {
	b.Next.ClearSnapshot()
}
