package discord

import (
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/interkit/internal/module"
)

// registerCommands overwrites the global and development guild command sets
// whose definitions changed since the last registration.
func (b *Bot) registerCommands(appID string) {
	cmds := b.registry.Commands()
	if b.opts.DevGuildID == "" {
		for _, c := range cmds {
			if c.Dev {
				b.log.Warn().Str("command", c.Name).Msg("dev command skipped, DEV_GUILD_ID is not set")
			}
		}
	}
	scopes := partitionCommands(cmds, b.opts.DevGuildID)

	for guildID, defs := range scopes {
		log := b.log.With().Str("scope", scopeName(guildID)).Logger()

		local := hashScope(defs)
		cached := loadCommandHashes(b.opts.CacheDir, guildID)
		if !hashesChanged(cached, local) {
			log.Debug().Int("commands", len(defs)).Msg("commands unchanged")
			continue
		}

		if _, err := b.dg.ApplicationCommandBulkOverwrite(appID, guildID, defs); err != nil {
			log.Error().Err(err).Msg("failed to register commands")
			continue
		}
		if err := saveCommandHashes(b.opts.CacheDir, guildID, local); err != nil {
			log.Warn().Err(err).Msg("failed to cache command hashes")
		}
		log.Info().Int("commands", len(defs)).Msg("commands registered")
	}
}

// partitionCommands groups command definitions by target guild, "" being
// global. Dev commands without a development guild are skipped. A configured
// development guild always gets a scope, so removing its last command clears
// the commands registered there.
func partitionCommands(cmds []*module.Command, devGuildID string) map[string][]*discordgo.ApplicationCommand {
	scopes := map[string][]*discordgo.ApplicationCommand{"": {}}
	if devGuildID != "" {
		scopes[devGuildID] = []*discordgo.ApplicationCommand{}
	}
	for _, c := range cmds {
		guildID := ""
		if c.Dev {
			if devGuildID == "" {
				continue
			}
			guildID = devGuildID
		}
		scopes[guildID] = append(scopes[guildID], c.Definition())
	}
	for _, defs := range scopes {
		sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	}
	return scopes
}

func scopeName(guildID string) string {
	if guildID == "" {
		return globalScope
	}
	return guildID
}
