package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/keshon/interkit/internal/permission"
)

// messageActor resolves the claims of a message author. Message events carry
// no computed permissions, so the administrator bit is read from the
// channel permissions, falling back to the guild owner check.
func messageActor(s *discordgo.Session, m *discordgo.MessageCreate) permission.Actor {
	a := permission.Actor{ID: m.Author.ID}
	if m.Member != nil {
		a.Roles = m.Member.Roles
	}
	a.IsAdmin = isAdministrator(s, m.GuildID, m.ChannelID, m.Author.ID)
	return a
}

func isAdministrator(s *discordgo.Session, guildID, channelID, userID string) bool {
	if perms, err := s.State.UserChannelPermissions(userID, channelID); err == nil {
		return perms&discordgo.PermissionAdministrator != 0
	}
	if perms, err := s.UserChannelPermissions(userID, channelID); err == nil {
		return perms&discordgo.PermissionAdministrator != 0
	}
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return false
	}
	return guild.OwnerID == userID
}
