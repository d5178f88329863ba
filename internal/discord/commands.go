package discord

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/slskdbot/slskd-bot/internal/bot"
	"github.com/slskdbot/slskd-bot/internal/constants"
	"github.com/slskdbot/slskd-bot/internal/logging"
	"github.com/slskdbot/slskd-bot/internal/ratelimit"
	"github.com/slskdbot/slskd-bot/internal/results"
)

// Handler routes Discord messages and button presses to a bot.Service.
type Handler struct {
	session Session
	svc     *bot.Service
	prefix  string
	views   *views
	limits  *ratelimit.Registry
	logger  *logging.Logger

	mu  sync.RWMutex
	ctx context.Context
}

// NewHandler creates a command handler. An empty prefix defaults to "!".
func NewHandler(session Session, svc *bot.Service, prefix string, logger *logging.Logger) *Handler {
	if prefix == "" {
		prefix = "!"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		session: session,
		svc:     svc,
		prefix:  prefix,
		views:   newViews(),
		limits:  ratelimit.NewRegistry(constants.SearchRatePerSec, constants.SearchBurstCapacity),
		logger:  logger,
		ctx:     context.Background(),
	}
}

func (h *Handler) context() context.Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ctx
}

func (h *Handler) setContext(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctx = ctx
}

// Run registers the handlers on s, opens the gateway connection and blocks
// until ctx is done.
func (h *Handler) Run(ctx context.Context, s *discordgo.Session) error {
	h.setContext(ctx)

	removers := []func(){
		s.AddHandler(h.onReady),
		s.AddHandler(h.onMessageCreate),
		s.AddHandler(h.onInteractionCreate),
	}
	defer func() {
		for _, remove := range removers {
			remove()
		}
	}()

	if err := s.Open(); err != nil {
		return fmt.Errorf("failed to open discord connection: %w", err)
	}

	<-ctx.Done()
	h.logger.Info().Msg("Closing discord connection")
	return s.Close()
}

func (h *Handler) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}
	h.logger.Info().Str("username", r.User.Username).Str("id", r.User.ID).Msg("Logged in to Discord")
}

func (h *Handler) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	h.HandleMessage(h.context(), m.Message)
}

func (h *Handler) onInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	h.HandleInteraction(h.context(), i.Interaction)
}

// HandleMessage dispatches a prefixed command.
func (h *Handler) HandleMessage(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	content := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(content, h.prefix) {
		return
	}
	name, args, _ := strings.Cut(strings.TrimPrefix(content, h.prefix), " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(name) {
	case "search":
		h.search(ctx, m, args)
	case "dl", "download":
		h.download(ctx, m, args)
	case "progress", "status":
		h.progress(ctx, m)
	case "help":
		h.reply(ctx, m, h.usage())
	}
}

func (h *Handler) usage() string {
	p := h.prefix
	return fmt.Sprintf("`%ssearch <query>` search Soulseek\n`%sdl <number>` download a result from your last search\n`%sprogress` show incoming transfers", p, p, p)
}

func (h *Handler) reply(ctx context.Context, m *discordgo.Message, text string) *discordgo.Message {
	msg, err := h.session.ChannelMessageSendReply(m.ChannelID, text, m.Reference(), withCtx(ctx))
	if err != nil {
		h.logger.Error().Err(err).Str("channel_id", m.ChannelID).Msg("Failed to send reply")
		return nil
	}
	return msg
}

func (h *Handler) edit(ctx context.Context, e *discordgo.MessageEdit) {
	if _, err := h.session.ChannelMessageEditComplex(e, withCtx(ctx)); err != nil {
		h.logger.Warn().Err(err).Str("message_id", e.ID).Msg("Failed to edit message")
	}
}

func (h *Handler) search(ctx context.Context, m *discordgo.Message, query string) {
	if query == "" {
		h.reply(ctx, m, fmt.Sprintf("Usage: `%ssearch <query>`", h.prefix))
		return
	}
	h.limits.Prune(time.Now())
	if ok, retry := h.limits.Allow(m.Author.ID); !ok {
		h.reply(ctx, m, fmt.Sprintf("You're searching too fast. Try again in %d seconds.", int(math.Ceil(retry.Seconds()))))
		return
	}

	shown := sanitize(query)
	h.logger.Info().Str("user", m.Author.Username).Str("query", query).Msg("Search requested")

	msg := h.reply(ctx, m, fmt.Sprintf("🔍 Starting search for `%s`... this may take a moment.", shown))
	if msg == nil {
		return
	}

	// The result view goes live with the first results, so the user can page
	// while later responses are still being merged in.
	live := false
	show := func(set *results.Set, status string) {
		if !live {
			live = true
			h.svc.Activate(m.Author.ID, set)
			if old := h.views.add(&view{messageID: msg.ID, channelID: msg.ChannelID, userID: m.Author.ID, set: set}); old != nil {
				h.retire(ctx, old, "")
			}
		}
		embeds := []*discordgo.MessageEmbed{resultsEmbed(set, h.prefix)}
		components := resultButtons(set, false)
		h.edit(ctx, &discordgo.MessageEdit{
			ID:         msg.ID,
			Channel:    msg.ChannelID,
			Content:    &status,
			Embeds:     &embeds,
			Components: &components,
		})
	}

	set, err := h.svc.Search(ctx, query, func(s *results.Set) {
		show(s, fmt.Sprintf("🔍 Searching for `%s`... %d results so far.", shown, s.Len()))
	})
	if err != nil {
		text := "Sorry, I failed to start the search on slskd. Check my logs."
		if !errors.Is(err, bot.ErrSearchFailed) {
			text = fmt.Sprintf("Search for `%s` was interrupted.", shown)
		}
		h.edit(ctx, &discordgo.MessageEdit{ID: msg.ID, Channel: msg.ChannelID, Content: &text})
		return
	}
	if set.Len() == 0 {
		text := fmt.Sprintf("Search for `%s` completed with no results.", shown)
		h.edit(ctx, &discordgo.MessageEdit{ID: msg.ID, Channel: msg.ChannelID, Content: &text})
		return
	}
	show(set, "")
}

// retire disables a view's buttons, replacing its text when text is set.
func (h *Handler) retire(ctx context.Context, v *view, text string) {
	components := resultButtons(v.set, true)
	e := &discordgo.MessageEdit{ID: v.messageID, Channel: v.channelID, Components: &components}
	if text != "" {
		embeds := []*discordgo.MessageEmbed{}
		e.Content = &text
		e.Embeds = &embeds
	}
	h.edit(ctx, e)
}

// Expire closes the view of a result set dropped for inactivity. It is the
// janitor callback.
func (h *Handler) Expire(e results.Expired) {
	v, ok := h.views.forSet(e.UserID, e.Set)
	if !ok {
		return
	}
	h.views.remove(v)
	h.retire(h.context(), v, "Search timed out.")
}

func (h *Handler) download(ctx context.Context, m *discordgo.Message, arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		h.reply(ctx, m, fmt.Sprintf("Please give a result number, e.g. `%sdl 5`.", h.prefix))
		return
	}

	q, err := h.svc.Download(ctx, m.Author.ID, m.ChannelID, n)
	switch {
	case err == nil:
	case errors.Is(err, bot.ErrNoResults):
		h.reply(ctx, m, fmt.Sprintf("You don't have any active search results. Please use `%ssearch` first.", h.prefix))
		return
	case errors.Is(err, results.ErrNoSelection):
		total := 0
		if set, ok := h.svc.Sessions().Get(m.Author.ID); ok {
			total = set.Len()
		}
		h.reply(ctx, m, fmt.Sprintf("Invalid number. Please pick a number between 1 and %d.", total))
		return
	case errors.Is(err, bot.ErrEnqueueFailed):
		h.reply(ctx, m, "Failed to queue download. Please try again.")
		return
	default:
		h.logger.Error().Err(err).Msg("Download command failed")
		h.reply(ctx, m, fmt.Sprintf("An error occurred while trying to queue the download: %v", err))
		return
	}

	if q.Item.Kind == results.KindFolder {
		h.reply(ctx, m, fmt.Sprintf("✅ Queued folder for download: `%s` (%d files)", sanitize(q.Item.Name), len(q.Keys)))
		return
	}
	h.reply(ctx, m, fmt.Sprintf("✅ Queued for download: `%s`", sanitize(q.Item.Name)))
}

func (h *Handler) progress(ctx context.Context, m *discordgo.Message) {
	transfers, err := h.svc.Progress(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Progress command failed")
		h.reply(ctx, m, "Could not retrieve download status.")
		return
	}
	if len(transfers) == 0 {
		h.reply(ctx, m, "No active downloads found.")
		return
	}

	_, err = h.session.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Embeds:    []*discordgo.MessageEmbed{progressEmbed(transfers)},
		Reference: m.Reference(),
	}, withCtx(ctx))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to send progress")
	}
}

// HandleInteraction handles the paging buttons of a result view. Only the
// user who ran the search may use them.
func (h *Handler) HandleInteraction(ctx context.Context, i *discordgo.Interaction) {
	if i == nil || i.Type != discordgo.InteractionMessageComponent || i.Message == nil {
		return
	}

	v, ok := h.views.get(i.Message.ID)
	if !ok {
		h.ephemeral(ctx, i, "This search has expired. Run a new search.")
		return
	}
	if interactionUser(i) != v.userID {
		h.ephemeral(ctx, i, "This is not your search.")
		return
	}

	switch i.MessageComponentData().CustomID {
	case buttonFirst:
		v.set.First()
	case buttonPrev:
		v.set.Prev()
	case buttonNext:
		v.set.Next()
	case buttonLast:
		v.set.Last()
	case buttonCancel:
		h.svc.Sessions().DeleteIf(v.userID, v.set)
		h.views.remove(v)
		h.respond(ctx, i, &discordgo.InteractionResponseData{
			Content:    "Search cancelled and results cleared.",
			Embeds:     []*discordgo.MessageEmbed{},
			Components: []discordgo.MessageComponent{},
		})
		return
	default:
		return
	}

	h.svc.Sessions().Touch(v.userID)
	h.respond(ctx, i, &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{resultsEmbed(v.set, h.prefix)},
		Components: resultButtons(v.set, false),
	})
}

func (h *Handler) respond(ctx context.Context, i *discordgo.Interaction, data *discordgo.InteractionResponseData) {
	err := h.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	}, withCtx(ctx))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to update result view")
	}
}

func (h *Handler) ephemeral(ctx context.Context, i *discordgo.Interaction, text string) {
	err := h.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text, Flags: discordgo.MessageFlagsEphemeral},
	}, withCtx(ctx))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send ephemeral reply")
	}
}

func interactionUser(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// sanitize keeps user text from breaking out of an inline code span.
func sanitize(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}
