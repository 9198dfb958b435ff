package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/50naija1/pizuna-app/internal/api"
	"github.com/50naija1/pizuna-app/internal/chat"
	"github.com/50naija1/pizuna-app/internal/conv"
	"github.com/50naija1/pizuna-app/internal/media"
	"github.com/50naija1/pizuna-app/internal/proto"
	"github.com/50naija1/pizuna-app/internal/socket"
	"github.com/50naija1/pizuna-app/internal/store"
	cachesqlite "github.com/50naija1/pizuna-app/internal/store/sqlite"
	"github.com/50naija1/pizuna-app/internal/token"
)

func chatCmd(a *app) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open a conversation with another participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				return errors.New("--to is required")
			}
			return runChat(cmd.Context(), a, to)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "participant id or phone of the other side")
	return cmd
}

func runChat(parent context.Context, a *app, peer string) error {
	tok, err := token.NewStore(a.cfg.TokenPath).Load()
	if err != nil {
		return err
	}
	if tok == "" {
		return errors.New("not logged in; run `pizuna login` first")
	}

	me, err := chat.IdentityFromToken(tok)
	if err != nil {
		return fmt.Errorf("stored token unusable: %w", err)
	}
	self := me.Participant()
	convID := conv.ID(self, peer)

	client := api.New(a.cfg.ServerURL, a.cfg.RequestTimeout, a.logger)
	client.SetToken(tok)

	wsURL, err := a.cfg.SocketURL()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := socket.NewManager(wsURL, a.cfg.RequestTimeout, a.logger)
	defer mgr.Close()

	subs := []socket.Subscription{
		mgr.On(proto.EventConnect, func(json.RawMessage) {
			fmt.Println("* connected")
		}),
		mgr.On(proto.EventDisconnect, func(json.RawMessage) {
			fmt.Println("* disconnected")
		}),
		mgr.On(proto.EventConnectError, func(data json.RawMessage) {
			var ce proto.ConnectError
			_ = json.Unmarshal(data, &ce)
			fmt.Printf("! connection failed: %s\n", ce.Message)
		}),
		mgr.On(proto.EventMessageReceive, func(data json.RawMessage) {
			var in proto.MessageReceive
			if err := json.Unmarshal(data, &in); err != nil || in.ConversationID != convID {
				return
			}
			printMessage(self, store.Message{
				From:      in.From,
				Body:      in.Body,
				Type:      store.MessageType(in.Type),
				CreatedAt: in.CreatedAt,
				Status:    store.StatusSent,
			})
		}),
		mgr.On(proto.EventMessageAck, func(json.RawMessage) {
			fmt.Println("  ✓ delivered")
		}),
	}
	defer func() {
		for _, s := range subs {
			mgr.Off(s)
		}
	}()

	if _, err := mgr.Connect(ctx, tok); err != nil {
		return err
	}

	opts := chat.Options{
		Self:     self,
		Peer:     peer,
		Socket:   mgr,
		Messages: store.NewLog(),
		History:  client,
		Uploader: media.New(client, a.cfg.MaxMediaBytes, a.logger),
		Logger:   a.logger,
	}
	if a.cfg.CachePath != "" {
		cache, err := cachesqlite.New(a.cfg.CachePath)
		if err != nil {
			a.logger.Warn().Err(err).Str("path", a.cfg.CachePath).Msg("history cache unavailable")
		} else {
			defer cache.Close()
			opts.Cache = cache
		}
	}

	sess, err := chat.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	for _, m := range sess.Messages() {
		printMessage(self, m)
	}
	fmt.Printf("Chatting with %s. /image <path> sends a file, /quit exits.\n", peer)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			text := strings.TrimSpace(line)
			switch {
			case text == "":
			case text == "/quit":
				return nil
			case strings.HasPrefix(text, "/image "):
				path := strings.TrimSpace(strings.TrimPrefix(text, "/image "))
				if _, err := sess.SendMedia(ctx, path); err != nil {
					printError(err)
				}
			default:
				if _, err := sess.SendText(text); err != nil {
					printError(err)
				}
			}
		}
	}
}

func printMessage(self string, m store.Message) {
	body := m.Body
	if m.Type == store.TypeImage {
		body = "[image] " + m.Body
	}

	marker := ""
	if m.From == self {
		switch m.Status {
		case store.StatusPending:
			marker = " ⏳"
		case store.StatusFailed:
			marker = " ✗"
		default:
			marker = " ✓"
		}
	}
	fmt.Printf("[%s] %s: %s%s\n", m.CreatedAt.Local().Format("15:04"), m.From, body, marker)
}

func printError(err error) {
	var chatErr *chat.Error
	if errors.As(err, &chatErr) {
		fmt.Printf("! %s\n", chatErr.Message)
		return
	}
	fmt.Printf("! %v\n", err)
}
