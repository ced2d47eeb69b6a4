package webhook

import (
	"fmt"
	"html"
	"strings"
)

// Card is the platform-neutral rendering of a notification.
type Card struct {
	Title               string `json:"title"`
	Body                string `json:"body"`
	URL                 string `json:"url"`
	AuthorName          string `json:"author_name"`
	AuthorURL           string `json:"author_url,omitempty"`
	PreviewImageURL     string `json:"preview_image_url"`
	PreviewImageAltText string `json:"preview_image_alt_text"`
	Community           string `json:"community"`
	Category            string `json:"category_id"`
}

type platform struct {
	name    string
	matches []string
	// build returns the URL to post to and the JSON body.
	build func(d *Dispatcher, target string, c Card) (string, any, error)
}

var platforms = []platform{
	{name: "slack", matches: []string{"hooks.slack.com"}, build: slackPayload},
	{name: "discord", matches: []string{"discord.com/api/webhooks", "discordapp.com/api/webhooks"}, build: discordPayload},
	{name: "telegram", matches: []string{"api.telegram.org"}, build: telegramPayload},
	{name: "zapier", matches: []string{"hooks.zapier.com"}, build: zapierPayload},
}

func platformFor(target string) (platform, bool) {
	lower := strings.ToLower(target)
	for _, p := range platforms {
		for _, m := range p.matches {
			if strings.Contains(lower, m) {
				return p, true
			}
		}
	}
	return platform{}, false
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type      string      `json:"type"`
	Text      *slackText  `json:"text,omitempty"`
	Accessory *slackImage `json:"accessory,omitempty"`
	Elements  []slackText `json:"elements,omitempty"`
}

type slackImage struct {
	Type     string `json:"type"`
	ImageURL string `json:"image_url"`
	AltText  string `json:"alt_text"`
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

func slackPayload(_ *Dispatcher, target string, c Card) (string, any, error) {
	section := fmt.Sprintf("*<%s|%s>*", c.URL, slackEscape(c.Title))
	if c.Body != "" {
		section += "\n" + slackEscape(c.Body)
	}
	msg := slackMessage{
		Text: c.Title,
		Blocks: []slackBlock{
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: section},
				Accessory: &slackImage{
					Type:     "image",
					ImageURL: c.PreviewImageURL,
					AltText:  c.PreviewImageAltText,
				},
			},
			{
				Type:     "context",
				Elements: []slackText{{Type: "mrkdwn", Text: byline(c)}},
			},
		},
	}
	return target, msg, nil
}

// slackEscape escapes the three characters mrkdwn treats as control sequences.
func slackEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

type discordAuthor struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type discordImage struct {
	URL string `json:"url"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Description string         `json:"description,omitempty"`
	Author      *discordAuthor `json:"author,omitempty"`
	Thumbnail   *discordImage  `json:"thumbnail,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordMessage struct {
	Username  string         `json:"username"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []discordEmbed `json:"embeds"`
}

func discordPayload(d *Dispatcher, target string, c Card) (string, any, error) {
	embed := discordEmbed{
		Title:       c.Title,
		URL:         c.URL,
		Description: c.Body,
		Thumbnail:   &discordImage{URL: c.PreviewImageURL},
	}
	if c.AuthorName != "" {
		embed.Author = &discordAuthor{Name: c.AuthorName, URL: c.AuthorURL}
	}
	if c.Community != "" {
		embed.Footer = &discordFooter{Text: c.Community}
	}
	return target, discordMessage{
		Username:  "Commonwealth",
		AvatarURL: d.cfg.DefaultLogoURL,
		Embeds:    []discordEmbed{embed},
	}, nil
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// telegramPayload expects targets of the form https://api.telegram.org/@channel.
// With a bot token configured the message goes to the Bot API sendMessage
// method, otherwise to the target itself.
func telegramPayload(d *Dispatcher, target string, c Card) (string, any, error) {
	i := strings.LastIndex(target, "/@")
	if i < 0 {
		return "", nil, fmt.Errorf("telegram target %q has no @channel", target)
	}
	chatID := strings.TrimRight(target[i+1:], "/")

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b><a href=\"%s\">%s</a></b>", html.EscapeString(c.URL), html.EscapeString(c.Title))
	if c.Body != "" {
		sb.WriteString("\n\n")
		sb.WriteString(html.EscapeString(c.Body))
	}
	sb.WriteString("\n\n<i>")
	sb.WriteString(html.EscapeString(byline(c)))
	sb.WriteString("</i>")

	endpoint := target
	if d.cfg.TelegramBotToken != "" {
		endpoint = "https://api.telegram.org/bot" + d.cfg.TelegramBotToken + "/sendMessage"
	}
	return endpoint, telegramMessage{ChatID: chatID, Text: sb.String(), ParseMode: "HTML"}, nil
}

func zapierPayload(_ *Dispatcher, target string, c Card) (string, any, error) {
	return target, c, nil
}

func byline(c Card) string {
	switch {
	case c.AuthorName != "" && c.Community != "":
		return fmt.Sprintf("%s in %s", c.AuthorName, c.Community)
	case c.AuthorName != "":
		return c.AuthorName
	default:
		return c.Community
	}
}
