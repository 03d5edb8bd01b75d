package service

import (
	"context"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/auth"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/hub"
	"github.com/weiawesome/wes-io-chat/pkg/audit"
	"github.com/weiawesome/wes-io-chat/pkg/chaterr"
	"github.com/weiawesome/wes-io-chat/pkg/idgen"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Close reasons sent to the client.
const (
	ReasonInvalidCredential     = "invalid credential"
	ReasonNotMember             = "not a member"
	ReasonMembershipUnavailable = "membership check failed"
	ReasonShutdown              = "server shutting down"
)

type chatService struct {
	registry  *hub.Registry
	validator auth.SessionValidator
	gate      auth.MembershipGate
	relay     RelayPublisher
	ids       idgen.Generator
	now       func() time.Time
}

func NewChatService(
	registry *hub.Registry,
	validator auth.SessionValidator,
	gate auth.MembershipGate,
	relay RelayPublisher,
	ids idgen.Generator,
) ChatService {
	return &chatService{
		registry:  registry,
		validator: validator,
		gate:      gate,
		relay:     relay,
		ids:       ids,
		now:       time.Now,
	}
}

func (s *chatService) Serve(ctx context.Context, conn Transport, roomID, credential string) error {
	sess := domain.NewSession(conn.ID(), roomID)
	ctx, _ = log.WithFields(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str(log.FieldConnID, conn.ID()).Str(log.FieldRoomID, roomID)
	})

	// Authenticating
	s.transition(ctx, sess, domain.StateAuthenticating)
	identity, err := s.validator.Validate(ctx, credential)
	if err != nil {
		err = chaterr.New(chaterr.KindAuthentication, "validate credential", err)
		audit.Record(ctx, audit.Entry{Action: audit.ActionAttach, RoomID: roomID, Err: err}, "credential rejected")
		s.refuse(ctx, sess, conn, websocket.ClosePolicyViolation, ReasonInvalidCredential)
		return err
	}
	sess.Authenticate(identity)

	ctx, l := log.WithFields(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str(log.FieldUserID, identity.ID).Str(log.FieldUsername, identity.Name)
	})

	// Authorizing
	s.transition(ctx, sess, domain.StateAuthorizing)
	member, err := s.gate.IsMember(ctx, identity, roomID)
	if err != nil {
		err = chaterr.New(chaterr.KindAuthorization, "check membership", err)
		s.refuse(ctx, sess, conn, websocket.CloseInternalServerErr, ReasonMembershipUnavailable)
		return err
	}
	if !member {
		audit.Record(ctx, audit.Entry{Action: audit.ActionAuthorize, UserID: identity.ID, RoomID: roomID, Err: auth.ErrNotMember}, "not a member of room")
		s.refuse(ctx, sess, conn, websocket.ClosePolicyViolation, ReasonNotMember)
		return chaterr.New(chaterr.KindAuthorization, "check membership", auth.ErrNotMember)
	}

	// Attached
	s.transition(ctx, sess, domain.StateAttached)
	s.registry.Attach(roomID, conn)
	audit.Record(ctx, audit.Entry{Action: audit.ActionAttach, UserID: identity.ID, RoomID: roomID}, "session attached")

	stop := context.AfterFunc(ctx, func() {
		conn.CloseWithReason(websocket.CloseGoingAway, ReasonShutdown)
	})
	defer stop()

	s.emit(ctx, domain.NewJoinEvent(s.nextID(ctx), roomID, identity.Name, s.now()))

	readErr := conn.ReadPump(func(text string) {
		sess.UpdateActivity()
		s.accept(ctx, sess, text)
	})
	if readErr != nil {
		l.Warn().Err(readErr).Str(log.FieldErrorKind, string(chaterr.KindOf(readErr))).Msg("connection lost")
	}

	// Closing
	s.transition(ctx, sess, domain.StateClosing)
	s.registry.Detach(roomID, conn)
	s.emit(ctx, domain.NewLeaveEvent(s.nextID(ctx), roomID, identity.Name, s.now()))
	conn.CloseWithReason(websocket.CloseNormalClosure, "")
	s.transition(ctx, sess, domain.StateClosed)
	audit.Record(ctx, audit.Entry{Action: audit.ActionDetach, UserID: identity.ID, RoomID: roomID}, "session detached")

	return readErr
}

// accept turns one inbound frame into a user message. The live broadcast
// always happens before the relay hand-off.
func (s *chatService) accept(ctx context.Context, sess *domain.Session, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	ev, err := domain.NewUserMessage(s.nextID(ctx), sess.RoomID, sess.Identity(), text, s.now())
	if err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("frame ignored")
		return
	}

	s.emit(ctx, ev)
}

func (s *chatService) emit(ctx context.Context, ev *domain.ChatEvent) {
	l := log.Ctx(ctx)

	payload, err := ev.MarshalOutbound()
	if err != nil {
		l.Error().Err(err).Str(log.FieldMessageID, ev.MessageID).Msg("failed to encode event")
		return
	}

	// Shutdown must not turn the farewell broadcast into send failures for
	// the rest of the room.
	res := s.registry.Broadcast(context.WithoutCancel(ctx), ev.RoomID, payload)
	l.Debug().
		Str(log.FieldMessageID, ev.MessageID).
		Str(log.FieldEventKind, string(ev.Kind)).
		Int("delivered", res.Delivered).
		Int("failed", len(res.Failed)).
		Msg("event broadcast")

	s.relay.Publish(ev)
}

func (s *chatService) refuse(ctx context.Context, sess *domain.Session, conn Transport, code int, reason string) {
	l := log.Ctx(ctx)
	l.Info().Int("close_code", code).Str("reason", reason).Msg("session refused")
	conn.CloseWithReason(code, reason)
	s.transition(ctx, sess, domain.StateClosed)
}

func (s *chatService) transition(ctx context.Context, sess *domain.Session, next domain.SessionState) {
	if err := sess.Transition(next); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldSessionState, sess.State().String()).Msg("session state")
	}
}

// nextID falls back to a random UUID if the configured generator fails, so
// an event is never left without an id.
func (s *chatService) nextID(ctx context.Context) string {
	id, err := s.ids.Generate()
	if err == nil {
		return id
	}
	l := log.Ctx(ctx)
	l.Warn().Err(err).Msg("id generator failed, using uuid")
	fallback, _ := idgen.New(idgen.Config{Strategy: idgen.StrategyUUID})
	id, _ = fallback.Generate()
	return id
}
