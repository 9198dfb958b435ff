// Package chat implements the optimistic send pipeline: a message is
// appended to the local log as pending the moment the user acts, then
// reconciled in place when the server acknowledges it or marked failed when
// the transport is unavailable. Acks and inbound deliveries are merged
// idempotently by id, so their arrival order never corrupts the log.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/50naija1/pizuna-app/internal/api"
	"github.com/50naija1/pizuna-app/internal/conv"
	"github.com/50naija1/pizuna-app/internal/media"
	"github.com/50naija1/pizuna-app/internal/proto"
	"github.com/50naija1/pizuna-app/internal/socket"
	"github.com/50naija1/pizuna-app/internal/store"
)

// historyLimit bounds how many cached messages seed a reopened conversation.
const historyLimit = 200

// Socket is the transport handle the session sends and subscribes through.
// *socket.Manager satisfies it.
type Socket interface {
	On(event string, h socket.Handler) socket.Subscription
	Off(sub socket.Subscription)
	Emit(event string, data any) error
	Disconnect()
}

// HistoryFetcher loads the server-side page of a conversation.
// *api.Client satisfies it.
type HistoryFetcher interface {
	History(ctx context.Context, conversationID string) ([]proto.MessageReceive, error)
}

// Uploader turns a local file into a durable reference before dispatch.
// *media.Uploader satisfies it.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Cache mirrors settled messages locally. *sqlite.Cache satisfies it.
type Cache interface {
	Put(ctx context.Context, msg store.Message) error
	Recent(ctx context.Context, conversationID string, limit int) ([]store.Message, error)
}

// Options configures a conversation session.
type Options struct {
	// Self and Peer are the participant identifiers; the conversation key is
	// derived from them order-independently.
	Self string
	Peer string

	Socket   Socket
	Messages *store.Log
	History  HistoryFetcher // optional
	Uploader Uploader       // optional, required for SendMedia
	Cache    Cache          // optional
	Logger   *zerolog.Logger
}

// Session binds one conversation to the transport and the message log for
// the lifetime of a conversation view. Open acquires the subscriptions,
// Close releases them and the owned transport session.
type Session struct {
	convID   string
	self     string
	peer     string
	sock     Socket
	messages *store.Log
	uploader Uploader
	cache    Cache
	log      *zerolog.Logger
	ids      tempIDGen
	subs     []socket.Subscription
}

// Open derives the conversation key, seeds the log from the local cache and
// the server history page, and subscribes to ack and delivery events. A
// failed history fetch is logged and non-fatal: the conversation still works
// live.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Self == "" || opts.Peer == "" {
		return nil, chatError(CodeValidation, "both participant identifiers are required", nil)
	}
	if opts.Socket == nil || opts.Messages == nil || opts.Logger == nil {
		return nil, chatError(CodeValidation, "socket, message log, and logger are required", nil)
	}

	s := &Session{
		convID:   conv.ID(opts.Self, opts.Peer),
		self:     opts.Self,
		peer:     opts.Peer,
		sock:     opts.Socket,
		messages: opts.Messages,
		uploader: opts.Uploader,
		cache:    opts.Cache,
		log:      opts.Logger,
	}

	if s.cache != nil {
		cached, err := s.cache.Recent(ctx, s.convID, historyLimit)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to read history cache")
		} else if n := s.messages.MergeHistory(s.convID, cached); n > 0 {
			s.log.Debug().Int("count", n).Msg("seeded conversation from cache")
		}
	}

	if opts.History != nil {
		page, err := opts.History.History(ctx, s.convID)
		if err != nil {
			s.log.Warn().Err(err).Str("conversation", s.convID).Msg("failed to load messages")
		} else {
			msgs := make([]store.Message, 0, len(page))
			for _, in := range page {
				msgs = append(msgs, messageFromWire(in))
			}
			merged := s.messages.MergeHistory(s.convID, msgs)
			s.cacheAll(msgs)
			s.log.Debug().Int("merged", merged).Int("page", len(page)).Msg("history loaded")
		}
	}

	s.subs = []socket.Subscription{
		s.sock.On(proto.EventMessageAck, s.onAck),
		s.sock.On(proto.EventMessageReceive, s.onReceive),
	}
	return s, nil
}

// Close unregisters every subscription and closes the owned transport
// session. Safe to call more than once.
func (s *Session) Close() {
	for _, sub := range s.subs {
		s.sock.Off(sub)
	}
	s.subs = nil
	s.sock.Disconnect()
}

// ConversationID returns the derived conversation key.
func (s *Session) ConversationID() string {
	return s.convID
}

// Messages returns the conversation log in insertion order.
func (s *Session) Messages() []store.Message {
	return s.messages.Query(s.convID)
}

// SendText optimistically appends a pending text message and emits it. With
// no connected session the message is marked failed immediately; there is no
// queuing or retry.
func (s *Session) SendText(body string) (store.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return store.Message{}, chatError(CodeValidation, "message body is empty", nil)
	}
	return s.send(body, store.TypeText)
}

// SendMedia uploads the local file and, only after the transfer succeeded,
// dispatches the durable reference as an image message. Validation or upload
// failure leaves the log untouched.
func (s *Session) SendMedia(ctx context.Context, path string) (store.Message, error) {
	if s.uploader == nil {
		return store.Message{}, chatError(CodeValidation, "media uploads are not configured", nil)
	}

	fileURL, err := s.uploader.Upload(ctx, path)
	if err != nil {
		return store.Message{}, s.classifyUploadError(err)
	}
	return s.send(fileURL, store.TypeImage)
}

func (s *Session) send(body string, typ store.MessageType) (store.Message, error) {
	tempID := s.ids.next()
	msg := store.Message{
		ID:             tempID,
		ConversationID: s.convID,
		From:           s.self,
		To:             s.peer,
		Body:           body,
		Type:           typ,
		CreatedAt:      time.Now(),
		Status:         store.StatusPending,
		TempID:         tempID,
	}
	s.messages.Append(s.convID, msg)

	payload := proto.MessageSend{
		ConversationID: s.convID,
		To:             s.peer,
		Body:           body,
		TempID:         tempID,
		Type:           string(typ),
	}
	if err := s.sock.Emit(proto.EventMessageSend, payload); err != nil {
		s.messages.UpdateByTempID(s.convID, tempID, store.Patch{Status: store.StatusFailed})
		s.log.Warn().Err(err).Str("temp_id", tempID).Msg("message not sent")
		msg.Status = store.StatusFailed
		msg.TempID = ""
		return msg, chatError(CodeTransport, "message could not be sent", err)
	}

	s.log.Debug().Str("temp_id", tempID).Str("type", string(typ)).Msg("message emitted")
	return msg, nil
}

func (s *Session) classifyUploadError(err error) error {
	var serverErr *api.ServerError
	switch {
	case errors.Is(err, media.ErrTooLarge):
		return chatError(CodeValidation, "file exceeds the upload size limit", err)
	case errors.As(err, &serverErr):
		return chatError(CodeServer, "server rejected the upload", err)
	default:
		return chatError(CodeUpload, "media upload failed", err)
	}
}

// onAck reconciles a pending message with its server id. Acks for unknown or
// already reconciled temp ids are absorbed as no-ops.
func (s *Session) onAck(data json.RawMessage) {
	var ack proto.MessageAck
	if err := json.Unmarshal(data, &ack); err != nil {
		s.log.Warn().Err(err).Msg("malformed ack")
		return
	}
	if ack.TempID == "" || ack.ID == "" {
		return
	}

	if !s.messages.UpdateByTempID(s.convID, ack.TempID, store.Patch{ID: ack.ID, Status: store.StatusSent}) {
		s.log.Debug().Str("temp_id", ack.TempID).Msg("ack for unknown or reconciled message")
		return
	}
	if msg, ok := s.messages.Get(s.convID, ack.ID); ok {
		s.cachePut(msg)
	}
}

// onReceive appends a delivery from the other participant. Deliveries for
// other conversations and replayed ids are ignored.
func (s *Session) onReceive(data json.RawMessage) {
	var in proto.MessageReceive
	if err := json.Unmarshal(data, &in); err != nil {
		s.log.Warn().Err(err).Msg("malformed delivery")
		return
	}
	if in.ID == "" || in.ConversationID != s.convID {
		return
	}

	msg := messageFromWire(in)
	if !s.messages.Append(s.convID, msg) {
		s.log.Debug().Str("id", in.ID).Msg("duplicate delivery ignored")
		return
	}
	s.cachePut(msg)
}

func (s *Session) cachePut(msg store.Message) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(context.Background(), msg); err != nil {
		s.log.Warn().Err(err).Str("id", msg.ID).Msg("failed to cache message")
	}
}

func (s *Session) cacheAll(msgs []store.Message) {
	for _, m := range msgs {
		s.cachePut(m)
	}
}

func messageFromWire(in proto.MessageReceive) store.Message {
	typ := store.MessageType(in.Type)
	if typ != store.TypeImage {
		typ = store.TypeText
	}
	return store.Message{
		ID:             in.ID,
		ConversationID: in.ConversationID,
		From:           in.From,
		To:             in.To,
		Body:           in.Body,
		Type:           typ,
		CreatedAt:      in.CreatedAt,
		Status:         store.StatusSent,
	}
}
