package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"commonwealth/internal/delivery"
	"commonwealth/internal/domain"
	"commonwealth/internal/pkg/richtext"
)

var (
	ErrUnsupportedCategory = errors.New("category has no email rendering")
	errNoHeading           = errors.New("chain event has no heading")
)

// Content is one rendered notification.
type Content struct {
	Subject string
	// Summary is the single line used for the notification in digests.
	Summary string
	Excerpt string
	Link    string
}

type renderer struct {
	communities *delivery.Communities
	authors     AuthorDirectory
	labeler     delivery.ChainEventLabeler
	serverURL   string
}

type renderFunc func(ctx context.Context, r *renderer, n *domain.Notification, p domain.Payload) (Content, error)

type forumTemplate struct {
	subject string
	action  string
}

var emailTemplates = map[domain.Category]renderFunc{
	domain.CategoryNewComment:       forum(forumTemplate{subject: "Comment on: %s", action: "commented on"}),
	domain.CategoryNewMention:       forum(forumTemplate{subject: "You were mentioned in: %s", action: "mentioned you in"}),
	domain.CategoryNewCollaboration: forum(forumTemplate{subject: "You were added as a collaborator on: %s", action: "added you as a collaborator on"}),
	domain.CategoryNewThread:        forum(forumTemplate{subject: "New thread: %s", action: "created"}),
	domain.CategoryNewReaction:      forum(forumTemplate{subject: "New reaction on: %s", action: "reacted to"}),
	domain.CategoryChainEvent:       renderChainEvent,
	domain.CategorySnapshotProposal: unsupported,
	domain.CategoryThreadEdit:       unsupported,
	domain.CategoryCommentEdit:      unsupported,
}

func (r *renderer) render(ctx context.Context, n *domain.Notification) (Content, error) {
	fn, ok := emailTemplates[n.CategoryID]
	if !ok {
		return Content{}, fmt.Errorf("%w: %s", ErrUnsupportedCategory, n.CategoryID)
	}
	p, err := n.Payload()
	if err != nil {
		return Content{}, err
	}
	return fn(ctx, r, n, p)
}

func unsupported(_ context.Context, _ *renderer, n *domain.Notification, _ domain.Payload) (Content, error) {
	return Content{}, fmt.Errorf("%w: %s", ErrUnsupportedCategory, n.CategoryID)
}

func forum(t forumTemplate) renderFunc {
	return func(ctx context.Context, r *renderer, n *domain.Notification, p domain.Payload) (Content, error) {
		community, err := r.communities.Get(ctx, p.CommunityID())
		if err != nil {
			return Content{}, fmt.Errorf("load community: %w", err)
		}

		var (
			title, excerpt, link string
			authorAddress        string
			authorCommunity      string
		)
		switch d := p.(type) {
		case *domain.PostData:
			title = strings.TrimSpace(richtext.Decode(d.RootTitle))
			if d.CommentText != "" {
				excerpt = richtext.Excerpt(d.CommentText, richtext.ExcerptLength)
			}
			authorAddress = d.AuthorAddress
			authorCommunity = d.AuthorChain
			if authorCommunity == "" {
				authorCommunity = d.ChainID
			}
			link = r.postURL(d)
		case *domain.CommunityData:
			title = community.Name
			authorAddress = d.AuthorAddress
			authorCommunity = d.Chain
			link = r.serverURL + "/" + d.Chain
		default:
			return Content{}, fmt.Errorf("%w: %T for %s", domain.ErrInvalidPayload, p, n.CategoryID)
		}

		author := ""
		if authorAddress != "" {
			author, err = r.authors.DisplayName(ctx, authorAddress, authorCommunity)
			if err != nil {
				return Content{}, fmt.Errorf("resolve author: %w", err)
			}
		}
		if author == "" {
			author = "Someone"
		}

		summary := fmt.Sprintf("%s %s %q", author, t.action, title)
		if community.Name != "" {
			summary += " in " + community.Name
		}
		return Content{
			Subject: fmt.Sprintf(t.subject, title),
			Summary: summary,
			Excerpt: excerpt,
			Link:    link,
		}, nil
	}
}

func renderChainEvent(ctx context.Context, r *renderer, n *domain.Notification, p domain.Payload) (Content, error) {
	event, ok := p.(*domain.ChainEventData)
	if !ok {
		return Content{}, fmt.Errorf("%w: %T for %s", domain.ErrInvalidPayload, p, n.CategoryID)
	}

	label := r.labeler.Label(event.Chain, event)
	if label.Heading == "" {
		return Content{}, errNoHeading
	}

	community, err := r.communities.Get(ctx, event.Chain)
	if err != nil {
		return Content{}, fmt.Errorf("load community: %w", err)
	}

	link := label.LinkURL
	if link == "" {
		link = r.serverURL + "/" + event.Chain
	}
	return Content{
		Subject: fmt.Sprintf("%s event on %s", label.Heading, community.Name),
		Summary: label.Label,
		Link:    link,
	}, nil
}

func (r *renderer) postURL(d *domain.PostData) string {
	threadID, ok := d.ThreadID()
	if !ok {
		return r.serverURL + "/" + d.ChainID
	}
	u := fmt.Sprintf("%s/%s/discussion/%d", r.serverURL, d.ChainID, threadID)
	if d.CommentID != nil {
		u += fmt.Sprintf("?comment=%d", *d.CommentID)
	}
	return u
}

var (
	immediateHTML = template.Must(template.New("immediate").Parse(
		`<p>{{.Summary}}</p>{{if .Excerpt}}<blockquote>{{.Excerpt}}</blockquote>{{end}}<p><a href="{{.Link}}">View on Commonwealth</a></p>`))

	digestHTML = template.Must(template.New("digest").Parse(
		`<p>{{.Heading}}</p><ul>{{range .Items}}<li><a href="{{.Link}}">{{.Summary}}</a></li>{{end}}</ul>`))
)

func immediateBodies(c Content) (text, html string, err error) {
	var sb strings.Builder
	sb.WriteString(c.Summary)
	if c.Excerpt != "" {
		sb.WriteString("\n\n")
		sb.WriteString(c.Excerpt)
	}
	sb.WriteString("\n\nView on Commonwealth: ")
	sb.WriteString(c.Link)

	var buf bytes.Buffer
	if err := immediateHTML.Execute(&buf, c); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	return sb.String(), buf.String(), nil
}

func digestSubject(n int) string {
	if n == 1 {
		return "1 new notification"
	}
	return fmt.Sprintf("%d new notifications", n)
}

func digestBodies(items []Content) (text, html string, err error) {
	heading := fmt.Sprintf("You have %s on Commonwealth.", digestSubject(len(items)))

	var sb strings.Builder
	sb.WriteString(heading)
	sb.WriteString("\n")
	for _, it := range items {
		sb.WriteString("\n- ")
		sb.WriteString(it.Summary)
		if it.Link != "" {
			sb.WriteString(" (")
			sb.WriteString(it.Link)
			sb.WriteString(")")
		}
	}

	var buf bytes.Buffer
	data := struct {
		Heading string
		Items   []Content
	}{heading, items}
	if err := digestHTML.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	return sb.String(), buf.String(), nil
}
