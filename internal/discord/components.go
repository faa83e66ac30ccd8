package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/keshon/interkit/internal/event"
)

// buttonsPerRow is Discord's action row capacity.
const buttonsPerRow = 5

// messageComponents lays out buttons in rows of five followed by the select
// menu in a row of its own.
func messageComponents(m event.Message) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for start := 0; start < len(m.Buttons); start += buttonsPerRow {
		end := min(start+buttonsPerRow, len(m.Buttons))
		row := discordgo.ActionsRow{}
		for _, b := range m.Buttons[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				Style:    discordgo.PrimaryButton,
				CustomID: b.CustomID,
			})
		}
		rows = append(rows, row)
	}
	if m.Select != nil {
		opts := make([]discordgo.SelectMenuOption, len(m.Select.Options))
		for n, o := range m.Select.Options {
			opts[n] = discordgo.SelectMenuOption{Label: o.Name, Value: o.Value}
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    m.Select.CustomID,
				Placeholder: m.Select.Placeholder,
				Options:     opts,
			},
		}})
	}
	return rows
}

// formComponents puts every input in its own row, as modals require.
func formComponents(f event.Form) []discordgo.MessageComponent {
	rows := make([]discordgo.MessageComponent, len(f.Inputs))
	for n, in := range f.Inputs {
		style := discordgo.TextInputShort
		if in.Paragraph {
			style = discordgo.TextInputParagraph
		}
		rows[n] = discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{CustomID: in.CustomID, Label: in.Label, Style: style, Required: true},
		}}
	}
	return rows
}
