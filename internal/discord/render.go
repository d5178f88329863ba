package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/slskdbot/slskd-bot/internal/bot"
	"github.com/slskdbot/slskd-bot/internal/results"
)

const (
	colorBlue  = 0x3498db
	colorGreen = 0x2ecc71

	// Discord rejects embed descriptions above 4096 characters.
	maxDescription = 4096
)

// Button custom ids.
const (
	buttonFirst  = "slskd:first"
	buttonPrev   = "slskd:prev"
	buttonNext   = "slskd:next"
	buttonLast   = "slskd:last"
	buttonCancel = "slskd:cancel"
)

func resultsEmbed(set *results.Set, prefix string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Search Results for '%s'", set.Query()),
		Color: colorBlue,
	}
	if set.Len() == 0 {
		embed.Description = "No results found."
		return embed
	}

	first, items := set.PageItems()
	lines := make([]string, 0, len(items))
	for i, it := range items {
		lines = append(lines, resultLine(first+i, it))
	}
	embed.Description = clip(strings.Join(lines, "\n"))
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("Page %d of %d | Total Results: %d\nUse %sdl <number> to download.",
			set.Page()+1, set.PageCount(), set.Len(), prefix),
	}
	return embed
}

func resultLine(n int, it results.Item) string {
	slot := "❌"
	if it.FreeSlot {
		slot = "✅"
	}
	name := it.Name
	if name == "" {
		name = it.Path
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%d.** %s\n   `[%s]` `[%.2f MB]`", n, name, it.Kind, it.SizeMB)
	if it.Kind == results.KindFolder {
		fmt.Fprintf(&b, " `[%d files]`", it.FileCount)
	}
	fmt.Fprintf(&b, " `[%s Slot]` `[User: %s]`", slot, it.Peer)
	return b.String()
}

func resultButtons(set *results.Set, disabled bool) []discordgo.MessageComponent {
	atStart := set.Page() == 0
	atEnd := set.Page() >= set.PageCount()-1
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "<< First", Style: discordgo.SecondaryButton, CustomID: buttonFirst, Disabled: disabled || atStart},
			discordgo.Button{Label: "< Prev", Style: discordgo.PrimaryButton, CustomID: buttonPrev, Disabled: disabled || atStart},
			discordgo.Button{Label: "Next >", Style: discordgo.PrimaryButton, CustomID: buttonNext, Disabled: disabled || atEnd},
			discordgo.Button{Label: "Last >>", Style: discordgo.SecondaryButton, CustomID: buttonLast, Disabled: disabled || atEnd},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Cancel Search", Style: discordgo.DangerButton, CustomID: buttonCancel, Disabled: disabled},
		}},
	}
}

func progressEmbed(transfers []bot.TransferProgress) *discordgo.MessageEmbed {
	entries := make([]string, 0, len(transfers))
	for _, t := range transfers {
		entries = append(entries, fmt.Sprintf("**%s** (from %s)\n`%s` | %s | `%.1f%%`",
			t.Filename, t.Peer, t.State, bot.ProgressBar(t.Percent, "🟩", "⬜"), t.Percent))
	}
	return &discordgo.MessageEmbed{
		Title:       "Download Progress",
		Description: clip(strings.Join(entries, "\n\n")),
		Color:       colorGreen,
	}
}

// clip keeps s within the embed description limit, cutting on a line break.
func clip(s string) string {
	if len(s) <= maxDescription {
		return s
	}
	cut := s[:maxDescription-4]
	if i := strings.LastIndex(cut, "\n"); i > 0 {
		cut = cut[:i]
	}
	return cut + "\n..."
}
