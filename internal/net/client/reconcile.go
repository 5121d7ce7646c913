package client

import (
	"time"

	"stardrift/client/eventbus"
	"stardrift/client/internal/net/proto"
)

type busEvent struct {
	topic   eventbus.Topic
	payload any
}

// handleMessage applies one validated inbound message. Table mutations run
// under the mutex; bus publications happen afterwards so handlers can call
// back into the client.
func (c *Client) handleMessage(msg proto.ServerMessage) {
	var events []busEvent

	switch m := msg.(type) {
	case proto.WorldState:
		events = c.applySnapshot(m)
	case proto.PlayerUpdate:
		events = c.applyPlayerUpdate(m)
	case proto.Sing:
		events = c.applyGesture(m.From, TopicSing, m, func(ent *Entity) {
			ent.SingTimer = singDuration
		})
	case proto.Pulse:
		events = c.applyGesture(m.From, TopicPulse, m, func(ent *Entity) {
			ent.PulseTimer = pulseDuration
		})
	case proto.Emote:
		events = c.applyGesture(m.From, TopicEmote, m, func(ent *Entity) {
			ent.EmoteTimer = emoteDuration
			ent.EmoteGlyph = m.Glyph
		})
	case proto.Echo:
		events = c.applyEcho(m)
	case proto.StarLit:
		events = c.applyStarLit(m)
	case proto.EchoIgnited:
		events = c.applyEchoIgnited(m)
	case proto.Whisper:
		events = append(events, busEvent{TopicWhisper, m})
	case proto.PlayerData:
		events = c.applyPlayerData(m)
	case proto.XPGain:
		events = c.applyXPGain(m)
	case proto.Cooldown:
		events = c.applyCooldown(m)
	case proto.FriendAdded:
		events = c.applyFriendAdded(m)
	case proto.FriendRemoved:
		events = c.applyFriendRemoved(m)
	case proto.TeleportSuccess:
		events = c.applyTeleport(m)
	case proto.VoiceSignal:
		events = append(events, busEvent{TopicVoiceSignal, m})
	case proto.Pong:
		events = c.applyPong(m)
	}

	c.publishEvents(events)
}

func (c *Client) publishEvents(events []busEvent) {
	if len(events) == 0 {
		return
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	for _, ev := range events {
		c.bus.Publish(ev.topic, ev.payload)
	}
}

// applySnapshot reconciles the entity table against one authoritative
// world_state. The whole merge runs under the mutex so readers never see a
// half-applied snapshot. Absence from the snapshot is the only departure
// signal, so ids missing from it are removed.
func (c *Client) applySnapshot(ws proto.WorldState) []busEvent {
	var litIDs []string

	c.mu.Lock()
	seen := make(map[string]bool, len(ws.Entities))
	for _, es := range ws.Entities {
		if es.ID == "" {
			continue
		}
		seen[es.ID] = true

		if es.ID == c.cfg.Identity {
			// Self position is client-owned; only progression merges,
			// and only when the snapshot is at least as fresh.
			self := c.ensureSelfLocked()
			if es.UpdatedAt >= self.UpdatedAt {
				self.XP = es.XP
				self.Level = es.Level
				self.UpdatedAt = es.UpdatedAt
				if es.Name != "" {
					self.Name = es.Name
				}
			}
			continue
		}

		ent, ok := c.entities[es.ID]
		if !ok {
			ent = &Entity{ID: es.ID, X: es.X, Y: es.Y}
			c.entities[es.ID] = ent
		} else {
			ent.X += (es.X - ent.X) * c.cfg.Smoothing
			ent.Y += (es.Y - ent.Y) * c.cfg.Smoothing
		}
		ent.Name = es.Name
		ent.Hue = es.Hue
		ent.Size = es.Size
		ent.Halo = es.Halo
		ent.XP = es.XP
		ent.Level = es.Level
		ent.UpdatedAt = es.UpdatedAt
		if es.Singing && ent.SingTimer <= 0 {
			ent.SingTimer = singDuration
		}
		if es.Pulsing && ent.PulseTimer <= 0 {
			ent.PulseTimer = pulseDuration
		}
		if es.Emote != "" && ent.EmoteTimer <= 0 {
			ent.EmoteTimer = emoteDuration
			ent.EmoteGlyph = es.Emote
		}
	}

	removed := 0
	for id := range c.entities {
		if id == c.cfg.Identity || seen[id] {
			continue
		}
		delete(c.entities, id)
		removed++
	}

	echoes := make(map[string]*Echo, len(ws.Echoes))
	for _, e := range ws.Echoes {
		if e.ID == "" {
			continue
		}
		echoes[e.ID] = &Echo{
			ID:      e.ID,
			From:    e.From,
			X:       e.X,
			Y:       e.Y,
			Text:    e.Text,
			Ignited: e.Ignited,
		}
	}
	c.echoes = echoes
	c.linkedCount = ws.LinkedCount
	litIDs = ws.LitStars
	c.mu.Unlock()

	if c.stars != nil {
		for _, id := range litIDs {
			c.stars.IgniteID(id)
		}
	}
	c.metrics.RecordSnapshot(len(ws.Entities), removed)

	return []busEvent{{TopicSnapshotApplied, SnapshotSummary{
		Entities:    len(ws.Entities),
		Removed:     removed,
		LinkedCount: ws.LinkedCount,
		Timestamp:   ws.Timestamp,
	}}}
}

// applyPlayerUpdate nudges one known entity between snapshots. Unknown senders
// wait for the next snapshot; the self echo is ignored outright.
func (c *Client) applyPlayerUpdate(m proto.PlayerUpdate) []busEvent {
	if m.From == "" || m.From == c.cfg.Identity {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entities[m.From]
	if !ok {
		return nil
	}
	ent.X += (m.X - ent.X) * c.cfg.Smoothing
	ent.Y += (m.Y - ent.Y) * c.cfg.Smoothing
	if m.Hue > 0 {
		ent.Hue = m.Hue
	}
	return nil
}

// applyGesture arms the display timer on the sender, self included: gestures
// only take effect when the authoritative broadcast returns.
func (c *Client) applyGesture(from string, topic eventbus.Topic, payload any, apply func(*Entity)) []busEvent {
	c.mu.Lock()
	if from != "" {
		if ent, ok := c.entities[from]; ok {
			apply(ent)
		}
	}
	c.mu.Unlock()
	return []busEvent{{topic, payload}}
}

func (c *Client) applyEcho(m proto.Echo) []busEvent {
	if m.ID == "" {
		return nil
	}
	c.mu.Lock()
	c.echoes[m.ID] = &Echo{ID: m.ID, From: m.From, X: m.X, Y: m.Y, Text: m.Text}
	c.mu.Unlock()
	return []busEvent{{TopicEchoPlaced, m}}
}

func (c *Client) applyStarLit(m proto.StarLit) []busEvent {
	if c.stars != nil {
		c.stars.IgniteID(m.StarID)
	}
	if m.From != "" && m.From == c.cfg.Identity {
		c.mu.Lock()
		c.profile.StarsLit++
		c.mu.Unlock()
	}
	return []busEvent{{TopicStarLit, m}}
}

func (c *Client) applyEchoIgnited(m proto.EchoIgnited) []busEvent {
	c.mu.Lock()
	if echo, ok := c.echoes[m.EchoID]; ok {
		echo.Ignited = true
	}
	c.mu.Unlock()
	return []busEvent{{TopicEchoIgnited, m}}
}

// applyPlayerData merges the authoritative profile. The freshest UpdatedAt
// wins so a stale replay cannot roll progression back.
func (c *Client) applyPlayerData(m proto.PlayerData) []busEvent {
	c.mu.Lock()
	if m.UpdatedAt < c.profile.UpdatedAt {
		c.mu.Unlock()
		return nil
	}
	c.profile = Profile{
		ID:        m.ID,
		Name:      m.Name,
		Hue:       m.Hue,
		XP:        m.XP,
		Level:     m.Level,
		StarsLit:  m.StarsLit,
		UpdatedAt: m.UpdatedAt,
	}
	friends := make(map[string]string, len(m.Friends))
	for _, id := range m.Friends {
		friends[id] = c.friends[id]
	}
	c.friends = friends

	if m.ID == c.cfg.Identity {
		self := c.ensureSelfLocked()
		if m.UpdatedAt >= self.UpdatedAt {
			self.Name = m.Name
			self.Hue = m.Hue
			self.XP = m.XP
			self.Level = m.Level
			self.UpdatedAt = m.UpdatedAt
		}
	}
	profile := c.profile
	c.mu.Unlock()
	return []busEvent{{TopicProfileUpdated, profile}}
}

// applyXPGain applies an authoritative progression delta. The delta's
// timestamp advances UpdatedAt so a snapshot assembled before the gain
// cannot roll the new values back when it arrives late.
func (c *Client) applyXPGain(m proto.XPGain) []busEvent {
	c.mu.Lock()
	c.profile.XP = m.NewXP
	c.profile.Level = m.NewLevel
	if m.Timestamp > c.profile.UpdatedAt {
		c.profile.UpdatedAt = m.Timestamp
	}
	self := c.ensureSelfLocked()
	self.XP = m.NewXP
	self.Level = m.NewLevel
	if m.Timestamp > self.UpdatedAt {
		self.UpdatedAt = m.Timestamp
	}
	c.mu.Unlock()
	return []busEvent{{TopicXPGain, m}}
}

func (c *Client) applyCooldown(m proto.Cooldown) []busEvent {
	c.mu.Lock()
	c.cooldowns[m.Action] = c.now().Add(time.Duration(m.RemainingMs) * time.Millisecond)
	c.mu.Unlock()
	return []busEvent{{TopicCooldown, m}}
}

func (c *Client) applyFriendAdded(m proto.FriendAdded) []busEvent {
	c.mu.Lock()
	c.friends[m.ID] = m.Name
	c.mu.Unlock()
	return []busEvent{{TopicFriendAdded, m}}
}

func (c *Client) applyFriendRemoved(m proto.FriendRemoved) []busEvent {
	c.mu.Lock()
	delete(c.friends, m.ID)
	c.mu.Unlock()
	return []busEvent{{TopicFriendRemoved, m}}
}

// applyTeleport is the one server-driven self move; it also retargets the
// region used by future reconnect attempts.
func (c *Client) applyTeleport(m proto.TeleportSuccess) []busEvent {
	c.mu.Lock()
	self := c.ensureSelfLocked()
	self.X = m.X
	self.Y = m.Y
	if m.Region != "" {
		c.region = m.Region
	}
	c.mu.Unlock()
	return []busEvent{{TopicTeleported, m}}
}

func (c *Client) applyPong(m proto.Pong) []busEvent {
	rtt := time.Duration(c.now().UnixMilli()-m.Timestamp) * time.Millisecond
	if rtt < 0 {
		rtt = 0
	}
	c.mu.Lock()
	c.missedPongs = 0
	c.latency = rtt
	c.mu.Unlock()
	c.metrics.RecordRTT(rtt)
	return []busEvent{{TopicLatency, LatencySample{RTTMillis: rtt.Milliseconds()}}}
}
