package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/gmoorevt/socialstyles/internal/events"
	"github.com/gmoorevt/socialstyles/internal/models"
)

// AssessmentStore covers assessment definitions and scored results.
// Getters return (nil, nil) when the record does not exist.
type AssessmentStore interface {
	GetAssessment(ctx context.Context, id string) (*models.Assessment, error)
	// ActiveAssessment returns the newest active assessment or nil.
	ActiveAssessment(ctx context.Context) (*models.Assessment, error)
	ListAssessments(ctx context.Context) ([]models.Assessment, error)
	// ActivateAssessment stores a as the only active assessment.
	ActivateAssessment(ctx context.Context, a *models.Assessment) error
	SetAssessmentActive(ctx context.Context, id string, active bool) error

	AddResult(ctx context.Context, r *models.Result) error
	GetResult(ctx context.Context, id string) (*models.Result, error)
	// ListResultsForUser returns newest first.
	ListResultsForUser(ctx context.Context, userID string) ([]models.Result, error)
	ListAllResults(ctx context.Context) ([]models.Result, error)

	GetUser(ctx context.Context, id string) (*models.User, error)
	ListTeamsForUser(ctx context.Context, userID string) ([]models.Team, error)
}

type AssessmentService struct {
	store  AssessmentStore
	events events.Publisher
	log    *slog.Logger
	now    func() time.Time
	idGen  func(n int) string
}

func NewAssessmentService(store AssessmentStore, pub events.Publisher, log *slog.Logger) *AssessmentService {
	if log == nil {
		log = slog.Default()
	}
	return &AssessmentService{
		store:  store,
		events: pub,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
		idGen:  shortID,
	}
}

func (s *AssessmentService) Active(ctx context.Context) (*models.Assessment, error) {
	a, err := s.store.ActiveAssessment(ctx)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNoActiveAssessment
	}
	return a, nil
}

func (s *AssessmentService) List(ctx context.Context) ([]models.Assessment, error) {
	return s.store.ListAssessments(ctx)
}

func (s *AssessmentService) assessment(ctx context.Context, id string) (*models.Assessment, error) {
	if id == "" {
		return s.Active(ctx)
	}
	a, err := s.store.GetAssessment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAssessmentNotFound
	}
	return a, nil
}

// InitAssessment stores a new question set and makes it the only active
// one. Earlier results keep pointing at their own assessment.
func (s *AssessmentService) InitAssessment(ctx context.Context, a *models.Assessment) (*models.Assessment, error) {
	if a == nil {
		return nil, NewInvalidError("assessment required")
	}
	if _, err := QuestionIDsByCategory(a); err != nil {
		return nil, NewInvalidError(err.Error())
	}
	if a.ID == "" {
		a.ID = s.idGen(8)
	}
	a.Active = true
	a.CreatedAt = s.now()
	if err := s.store.ActivateAssessment(ctx, a); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "assessment.activated", "assessment_id", a.ID, "questions", len(a.Questions))
	return a, nil
}

// SetActive toggles an assessment's availability; admins only.
func (s *AssessmentService) SetActive(ctx context.Context, actorID, id string, active bool) error {
	if err := requireAdmin(ctx, s.store, actorID); err != nil {
		return err
	}
	if _, err := s.assessment(ctx, id); err != nil {
		return err
	}
	return s.store.SetAssessmentActive(ctx, id, active)
}

// Submit scores a response set against the assessment (the active one when
// assessmentID is empty), stores the result, and tells the user's teams.
func (s *AssessmentService) Submit(ctx context.Context, userID, assessmentID string, responses models.ResponseSet) (*models.Result, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	a, err := s.assessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	ids, err := QuestionIDsByCategory(a)
	if err != nil {
		return nil, err
	}
	if responses == nil {
		responses = models.ResponseSet{}
	}
	score := ScoreResponses(responses, ids)
	r := &models.Result{
		ID:                  s.idGen(12),
		UserID:              userID,
		AssessmentID:        a.ID,
		Responses:           responses,
		AssertivenessScore:  score.Assertiveness,
		ResponsivenessScore: score.Responsiveness,
		SocialStyle:         score.Style,
		CreatedAt:           s.now(),
	}
	if err := s.store.AddResult(ctx, r); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "result.created", "result_id", r.ID, "user_id", userID, "style", r.SocialStyle)
	s.broadcast(ctx, u, r)
	return r, nil
}

func (s *AssessmentService) broadcast(ctx context.Context, u *models.User, r *models.Result) {
	if s.events == nil {
		return
	}
	teams, err := s.store.ListTeamsForUser(ctx, u.ID)
	if err != nil {
		s.log.WarnContext(ctx, "list teams for broadcast failed", "user_id", u.ID, "err", err)
		return
	}
	x, y := GridPosition(r.AssertivenessScore, r.ResponsivenessScore)
	payload := SnapshotEntry{UserID: u.ID, Name: u.DisplayName(), Style: r.SocialStyle, Result: r, X: x, Y: y}
	for _, t := range teams {
		publishTeam(ctx, s.events, s.log, t.ID, events.TypeResultCreated, payload)
	}
}

// GetResult returns a result to its owner or to an admin.
func (s *AssessmentService) GetResult(ctx context.Context, viewerID, resultID string) (*models.Result, error) {
	r, err := s.store.GetResult(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrResultNotFound
	}
	if r.UserID == viewerID {
		return r, nil
	}
	if err := requireAdmin(ctx, s.store, viewerID); err != nil {
		if _, ok := AsServiceError(err); ok {
			return nil, NewForbiddenError("you do not have permission to view this result")
		}
		return nil, err
	}
	return r, nil
}

func (s *AssessmentService) ListResults(ctx context.Context, userID string) ([]models.Result, error) {
	return s.store.ListResultsForUser(ctx, userID)
}

func (s *AssessmentService) Report(ctx context.Context, viewerID, resultID string) (*Report, error) {
	r, err := s.GetResult(ctx, viewerID, resultID)
	if err != nil {
		return nil, err
	}
	owner, err := s.store.GetUser(ctx, r.UserID)
	if err != nil {
		return nil, err
	}
	rep := NewReport(*r, owner)
	return &rep, nil
}

type userGetter interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

func requireAdmin(ctx context.Context, store userGetter, userID string) error {
	u, err := store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil || !u.IsAdmin {
		return NewForbiddenError("admin only")
	}
	return nil
}
