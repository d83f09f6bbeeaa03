package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/timoshinoleg-eng/habit/internal/clock"
	"github.com/timoshinoleg-eng/habit/internal/domain"
)

type ErrorCode string

const (
	CodeTooShort        ErrorCode = "too_short"
	CodeTooLong         ErrorCode = "too_long"
	CodeBadFormat       ErrorCode = "bad_format"
	CodeOutOfRange      ErrorCode = "out_of_range"
	CodeForbiddenPrefix ErrorCode = "forbidden_prefix"
)

// ValidationError keeps the dialogue on the same step; collected fields
// survive and the user may retry indefinitely.
type ValidationError struct {
	Step Step
	Code ErrorCode
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input at step %s: %s", e.Step, e.Code)
}

// ErrNoHistory signals a back press on the first step; a notice, not a crash.
var ErrNoHistory = errors.New("nothing to go back to")

// HabitCreator persists the assembled draft; the commit either fully
// succeeds or the session stays on the final step for retry.
type HabitCreator interface {
	CreateFromDraft(ctx context.Context, userID int64, draft Draft) (*domain.Habit, error)
}

// Input is one user event fed into the dialogue.
type Input struct {
	Text string
	// Skip applies to the optional steps (description, emoji).
	Skip bool
}

// Result describes where the dialogue landed after an event.
type Result struct {
	Step  Step
	Done  bool
	Habit *domain.Habit
}

// Machine maps (current step, input) to the next step deterministically.
type Machine struct {
	store   *Store
	creator HabitCreator
	clk     clock.Clock
}

func NewMachine(store *Store, creator HabitCreator, clk clock.Clock) *Machine {
	return &Machine{store: store, creator: creator, clk: clk}
}

// Start opens a fresh session, replacing any dialogue already in flight.
func (m *Machine) Start(userID int64) *Session {
	return m.store.Create(userID, m.clk.Now())
}

// Advance validates the input for the session's current step and moves
// forward. A *ValidationError leaves the session untouched.
func (m *Machine) Advance(ctx context.Context, s *Session, in Input) (*Result, error) {
	switch s.Step {
	case StepName:
		name, err := validateName(in.Text)
		if err != nil {
			return nil, err
		}
		s.Draft.Name = name
		return m.forward(s), nil

	case StepDescription:
		if !in.Skip {
			desc, err := validateDescription(in.Text)
			if err != nil {
				return nil, err
			}
			s.Draft.Description = &desc
		}
		return m.forward(s), nil

	case StepEmoji:
		if in.Skip {
			s.Draft.Emoji = domain.DefaultEmoji
		} else {
			emoji := strings.TrimSpace(in.Text)
			if !domain.IsPaletteEmoji(emoji) {
				return nil, &ValidationError{Step: StepEmoji, Code: CodeBadFormat}
			}
			s.Draft.Emoji = emoji
		}
		return m.forward(s), nil

	case StepFrequency:
		freq, ok := domain.ParseFrequency(strings.TrimSpace(in.Text))
		if !ok || freq == domain.FrequencyCustom {
			return nil, &ValidationError{Step: StepFrequency, Code: CodeBadFormat}
		}
		s.Draft.Frequency = freq
		return m.forward(s), nil

	case StepReminderTime:
		reminder, err := validateReminderTime(in.Text)
		if err != nil {
			return nil, err
		}
		s.Draft.ReminderTime = reminder
		return m.commit(ctx, s)
	}

	return nil, fmt.Errorf("no dialogue step %q", s.Step)
}

// Back restores the previous step's snapshot. Values entered after that
// snapshot are discarded.
func (m *Machine) Back(s *Session) (Step, error) {
	prev, ok := s.History.Pop()
	if !ok {
		return s.Step, ErrNoHistory
	}
	s.Step = prev.Step
	s.Draft = prev.Draft
	return s.Step, nil
}

// Cancel drops the session unconditionally, from any step.
func (m *Machine) Cancel(userID int64) {
	m.store.Clear(userID)
}

func (m *Machine) forward(s *Session) *Result {
	next := nextStep(s.Step)
	s.Step = next
	s.History.Push(Snapshot{Step: next, Draft: s.Draft, At: m.clk.Now()})
	return &Result{Step: next}
}

// commit persists the draft. On failure the session stays on the final
// step with all fields intact so the user can retry.
func (m *Machine) commit(ctx context.Context, s *Session) (*Result, error) {
	habit, err := m.creator.CreateFromDraft(ctx, s.UserID, s.Draft)
	if err != nil {
		return nil, fmt.Errorf("commit habit: %w", err)
	}
	m.store.Clear(s.UserID)
	return &Result{Done: true, Habit: habit}, nil
}

func nextStep(s Step) Step {
	for i, step := range stepOrder {
		if step == s && i+1 < len(stepOrder) {
			return stepOrder[i+1]
		}
	}
	return s
}

// ==================== VALIDATION ====================

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "!") {
		return "", &ValidationError{Step: StepName, Code: CodeForbiddenPrefix}
	}
	switch n := utf8.RuneCountInString(name); {
	case n < domain.NameMinLen:
		return "", &ValidationError{Step: StepName, Code: CodeTooShort}
	case n > domain.NameMaxLen:
		return "", &ValidationError{Step: StepName, Code: CodeTooLong}
	}
	return name, nil
}

func validateDescription(raw string) (string, error) {
	desc := strings.TrimSpace(raw)
	if utf8.RuneCountInString(desc) > domain.DescriptionMaxLen {
		return "", &ValidationError{Step: StepDescription, Code: CodeTooLong}
	}
	return desc, nil
}

// validateReminderTime accepts "none" or HH:MM. A malformed string is a
// format error; a well-formed time outside 00:00-23:59 is a range error.
func validateReminderTime(raw string) (*string, error) {
	text := strings.TrimSpace(raw)
	if strings.EqualFold(text, "none") {
		return nil, nil
	}

	parts := strings.Split(text, ":")
	if len(parts) != 2 {
		return nil, &ValidationError{Step: StepReminderTime, Code: CodeBadFormat}
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, &ValidationError{Step: StepReminderTime, Code: CodeBadFormat}
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, &ValidationError{Step: StepReminderTime, Code: CodeBadFormat}
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return nil, &ValidationError{Step: StepReminderTime, Code: CodeOutOfRange}
	}

	formatted := fmt.Sprintf("%02d:%02d", hours, minutes)
	return &formatted, nil
}
