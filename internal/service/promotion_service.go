package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"rank-service/internal/event"
	"rank-service/internal/models"
	"rank-service/internal/quiz"
)

const sessionKeyPrefix = "rankquiz"

// Denial is a user-facing refusal: the request was well-formed but not
// allowed right now. Denials are answers, not system errors, and are never
// logged as failures.
type Denial struct {
	Code    string
	Message string
}

func (d *Denial) Error() string {
	return d.Message
}

// RecordWriter is the attempt-persistence slice of the member record store.
type RecordWriter interface {
	RecordAttempt(ctx context.Context, memberID string, at time.Time, score int) error
}

// RoleMutator mirrors the platform role capability.
type RoleMutator interface {
	AddRole(ctx context.Context, guildID, memberID, roleID string) error
	RemoveRole(ctx context.Context, guildID, memberID, roleID string) error
}

// Messenger sends the audit lines; nil-safe via the channel ID being empty.
type Messenger interface {
	SendChannelMessage(ctx context.Context, channelID, content string) error
}

// QuizEventPublisher mirrors the amqp publisher.
type QuizEventPublisher interface {
	PublishQuizEvent(event *models.QuizEvent) error
}

// PromotionService drives the promotion gate end to end: eligibility,
// session lifecycle, grading, attempt persistence and the rank change.
type PromotionService struct {
	gate      *quiz.Gate
	sessions  *quiz.SessionStore
	bank      *quiz.Bank
	records   RecordWriter
	roles     RoleMutator
	messenger Messenger
	publisher QuizEventPublisher

	trialRoleID    string
	modRoleID      string
	defaultGuildID string
	auditChannelID string
	sessionSize    int
	passThreshold  int
	now            func() time.Time
}

type PromotionConfig struct {
	TrialRoleID    string
	ModRoleID      string
	DefaultGuildID string
	AuditChannelID string
	SessionSize    int
	PassThreshold  int
}

func NewPromotionService(
	gate *quiz.Gate,
	sessions *quiz.SessionStore,
	bank *quiz.Bank,
	records RecordWriter,
	roles RoleMutator,
	messenger Messenger,
	publisher QuizEventPublisher,
	cfg PromotionConfig,
) *PromotionService {
	return &PromotionService{
		gate:           gate,
		sessions:       sessions,
		bank:           bank,
		records:        records,
		roles:          roles,
		messenger:      messenger,
		publisher:      publisher,
		trialRoleID:    cfg.TrialRoleID,
		modRoleID:      cfg.ModRoleID,
		defaultGuildID: cfg.DefaultGuildID,
		auditChannelID: cfg.AuditChannelID,
		sessionSize:    cfg.SessionSize,
		passThreshold:  cfg.PassThreshold,
		now:            time.Now,
	}
}

// QuizPrompt is one question rendered to the member, with the key the next
// submission must echo back.
type QuizPrompt struct {
	Key     string   `json:"key"`
	Index   int      `json:"index"`
	Total   int      `json:"total"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
}

// AnswerOutcome is either the next prompt or the graded result.
type AnswerOutcome struct {
	Done    bool        `json:"done"`
	Passed  bool        `json:"passed,omitempty"`
	Score   int         `json:"score,omitempty"`
	Total   int         `json:"total,omitempty"`
	Message string      `json:"message,omitempty"`
	Next    *QuizPrompt `json:"next,omitempty"`
}

func sessionKey(memberID string, index int) string {
	return fmt.Sprintf("%s:%s:%d", sessionKeyPrefix, memberID, index)
}

// ParseSessionKey splits an interaction key into member ID and question
// index.
func ParseSessionKey(key string) (memberID string, index int, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != sessionKeyPrefix {
		return "", 0, fmt.Errorf("malformed session key %q", key)
	}
	index, err = strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, fmt.Errorf("malformed session key %q", key)
	}
	return parts[1], index, nil
}

func remainingHours(d time.Duration) int {
	return int(math.Ceil(d.Hours()))
}

// Eligibility answers the gate verdict for a member as a denial (or nil
// when eligible) without starting anything.
func (s *PromotionService) Eligibility(ctx context.Context, memberID string) (*Denial, error) {
	verdict, err := s.gate.Check(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return denialFor(verdict), nil
}

func denialFor(e quiz.Eligibility) *Denial {
	switch e.Verdict {
	case quiz.VerdictNotTracked:
		return &Denial{
			Code:    "not_tracked",
			Message: "I don't have your probation start date yet. Ask a Lead to re-apply the probation role.",
		}
	case quiz.VerdictStillWaiting:
		return &Denial{
			Code:    "still_waiting",
			Message: fmt.Sprintf("You can take the quiz after the minimum probation period. Time remaining: ~%dh", remainingHours(e.Remaining)),
		}
	case quiz.VerdictCoolingDown:
		return &Denial{
			Code:    "cooling_down",
			Message: fmt.Sprintf("You're on cooldown after your last attempt. Try again in ~%dh.", remainingHours(e.Remaining)),
		}
	default:
		return nil
	}
}

// StartQuiz runs the eligibility gate and, when it passes, opens a session
// and returns the first question.
func (s *PromotionService) StartQuiz(ctx context.Context, memberID, guildID string) (*QuizPrompt, error) {
	if guildID == "" {
		guildID = s.defaultGuildID
	}

	verdict, err := s.gate.Check(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if denial := denialFor(verdict); denial != nil {
		return nil, denial
	}

	session, err := s.sessions.Start(memberID, guildID, s.bank.Sample(s.sessionSize))
	if err != nil {
		if err == quiz.ErrSessionActive {
			return nil, &Denial{
				Code:    "session_active",
				Message: "You already have a quiz in progress. Finish it first.",
			}
		}
		return nil, err
	}

	s.audit(ctx, fmt.Sprintf("Promotion quiz START — member %s started the quiz.", memberID))
	s.publish(&models.QuizEvent{
		EventType:    event.EventTypeQuizStarted,
		SessionToken: session.Token,
		MemberID:     memberID,
		GuildID:      guildID,
		Total:        len(session.Questions),
		Timestamp:    s.now().Unix(),
	})

	first := session.Questions[0]
	return &QuizPrompt{
		Key:     sessionKey(memberID, 0),
		Index:   0,
		Total:   len(session.Questions),
		Prompt:  first.Prompt,
		Choices: first.Choices,
	}, nil
}

// SubmitAnswer applies one choice submission. The responder must be the
// member who started the session; a mismatch is denied without touching or
// revealing any session state.
func (s *PromotionService) SubmitAnswer(ctx context.Context, responderID, key string, choice int) (*AnswerOutcome, error) {
	memberID, index, err := ParseSessionKey(key)
	if err != nil {
		return nil, &Denial{Code: "bad_key", Message: "Out of sync. Run /start-quiz again."}
	}
	if responderID != memberID {
		return nil, &Denial{Code: "not_owner", Message: "This quiz isn't for you."}
	}

	result, session, err := s.sessions.Answer(memberID, index, choice)
	if err != nil {
		switch err {
		case quiz.ErrNoSession:
			return nil, &Denial{Code: "session_expired", Message: "Quiz session expired. Run /start-quiz again."}
		case quiz.ErrOutOfSync:
			return nil, &Denial{Code: "out_of_sync", Message: "Out of sync. Run /start-quiz again."}
		default:
			return nil, err
		}
	}

	if !result.Completed {
		return &AnswerOutcome{
			Next: &QuizPrompt{
				Key:     sessionKey(memberID, result.Index),
				Index:   result.Index,
				Total:   result.Total,
				Prompt:  result.Next.Prompt,
				Choices: result.Next.Choices,
			},
		}, nil
	}

	return s.grade(ctx, session, result), nil
}

// grade finishes a completed session: persist the attempt, and on pass swap
// the probationary role for the full rank. Every side effect is independent
// and best-effort; none may abort the grading itself.
func (s *PromotionService) grade(ctx context.Context, session *quiz.Session, result quiz.AnswerResult) *AnswerOutcome {
	passed := result.Score >= s.passThreshold

	if err := s.records.RecordAttempt(ctx, session.MemberID, s.now(), result.Score); err != nil {
		log.Printf("Failed to persist quiz attempt for member %s: %v", session.MemberID, err)
	}

	outcome := &AnswerOutcome{
		Done:   true,
		Passed: passed,
		Score:  result.Score,
		Total:  result.Total,
	}

	if passed {
		if err := s.roles.RemoveRole(ctx, session.GuildID, session.MemberID, s.trialRoleID); err != nil {
			log.Printf("Failed to remove probation role from member %s: %v", session.MemberID, err)
		}
		if err := s.roles.AddRole(ctx, session.GuildID, session.MemberID, s.modRoleID); err != nil {
			log.Printf("Failed to add rank role to member %s: %v", session.MemberID, err)
		}
		outcome.Message = fmt.Sprintf("Passed! You scored %d/%d. You've been promoted.", result.Score, result.Total)
		s.audit(ctx, fmt.Sprintf("Promotion quiz PASS — member %s scored %d/%d and was promoted.", session.MemberID, result.Score, result.Total))
	} else {
		outcome.Message = fmt.Sprintf("Not quite. You scored %d/%d and need %d/%d to pass. Try again after the cooldown.", result.Score, result.Total, s.passThreshold, result.Total)
		s.audit(ctx, fmt.Sprintf("Promotion quiz FAIL — member %s scored %d/%d (needs %d/%d).", session.MemberID, result.Score, result.Total, s.passThreshold, result.Total))
	}

	s.publish(&models.QuizEvent{
		EventType:    event.EventTypeQuizCompleted,
		SessionToken: session.Token,
		MemberID:     session.MemberID,
		GuildID:      session.GuildID,
		Score:        result.Score,
		Total:        result.Total,
		Passed:       passed,
		Timestamp:    s.now().Unix(),
	})

	return outcome
}

func (s *PromotionService) audit(ctx context.Context, message string) {
	if s.auditChannelID == "" || s.messenger == nil {
		return
	}
	if err := s.messenger.SendChannelMessage(ctx, s.auditChannelID, message); err != nil {
		log.Printf("Failed to send audit message: %v", err)
	}
}

func (s *PromotionService) publish(ev *models.QuizEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishQuizEvent(ev); err != nil {
		log.Printf("Failed to publish quiz event %s: %v", ev.EventType, err)
	}
}
