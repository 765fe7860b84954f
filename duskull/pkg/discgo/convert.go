package discgo

import (
	"ichor/duskull/defs"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/utils/sendpart"
	"github.com/samber/lo"
)

const attachmentPrefix = "attachment://"

// marshalSendData builds the arikawa request for a report message. Embed
// images always point at a file uploaded with the same message, and the
// message never pings anyone.
func marshalSendData(data defs.MessageData) api.SendMessageData {
	return api.SendMessageData{
		Content: data.Content,
		Embeds:  lo.Map(data.Embeds, toEmbed),
		Files: lo.Map(data.Files, func(f defs.FileData, _ int) sendpart.File {
			return sendpart.File{Name: f.Name, Reader: f.Reader}
		}),
		AllowedMentions: &api.AllowedMentions{Parse: []api.AllowedMentionType{}},
	}
}

func toEmbed(e defs.EmbedData, _ int) discord.Embed {
	embed := discord.Embed{
		Title:       e.Title,
		Description: e.Description,
		Fields: lo.Map(e.Fields, func(f defs.EmbedField, _ int) discord.EmbedField {
			return discord.EmbedField(f)
		}),
	}
	if e.Image != nil {
		embed.Image = &discord.EmbedImage{URL: attachmentPrefix + e.Image.Filename}
	}
	return embed
}
