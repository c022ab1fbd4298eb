package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dramaforge/internal/service"
	"dramaforge/shared/database"
	"dramaforge/shared/interfaces"
	"dramaforge/shared/interfaces/mocks"
	"dramaforge/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// recordingNotifier запоминает типы опубликованных событий.
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.SessionEvent
}

func (n *recordingNotifier) Notify(event models.SessionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) count(t models.SessionEventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Type == t {
			c++
		}
	}
	return c
}

type SessionTestSuite struct {
	suite.Suite
	ctx       context.Context
	cfg       service.GameplayConfig
	gen       *mocks.FrameGenerator
	settler   *mocks.Settler
	assets    interfaces.AssetRepository
	notifier  *recordingNotifier
	reconcile *service.Reconciler
	session   *service.Session
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func (s *SessionTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = service.DefaultGameplayConfig()
	s.gen = new(mocks.FrameGenerator)
	s.settler = new(mocks.Settler)
	s.notifier = &recordingNotifier{}
	s.assets = database.NewMemoryAssetRepository(seededAssets(), zap.NewNop())
	s.session = nil
}

// start собирает сессию с текущим cfg и загружает драму d1.
func (s *SessionTestSuite) start() {
	logger := zap.NewNop()
	s.reconcile = service.NewReconciler(s.settler, s.notifier, service.ReconcilerConfig{}, logger)
	deps := service.SessionDeps{
		Dramas: database.NewMemoryDramaRepository([]models.Drama{{
			ID:           "d1",
			Title:        "Night Train",
			Status:       models.DramaStatusPublished,
			OpeningFrame: sampleFrame(),
		}}),
		Registry:   service.NewAssetRegistry(s.assets, logger),
		Candidates: service.NewCandidateService(s.gen, s.cfg, nil, logger),
		Identity:   service.StaticIdentity("viewer-1"),
		Reconciler: s.reconcile,
		Notifier:   s.notifier,
		Clock:      func() time.Time { return fixedNow },
		Logger:     logger,
	}
	s.session = service.NewSession("session-1", s.cfg, deps)
	s.Require().NoError(s.session.LoadDrama(s.ctx, "d1"))
}

func (s *SessionTestSuite) generatorSucceeds() {
	s.gen.On("GenerateFrame", mock.Anything, mock.Anything).Return(sampleFrame(), nil)
}

func (s *SessionTestSuite) settlerSucceeds() {
	s.settler.On("Settle", mock.Anything, mock.Anything).Return(&models.Receipt{TransactionID: "0xabc", BlockReference: "local:abc"}, nil)
}

func (s *SessionTestSuite) usage(id string) int {
	a, err := s.assets.Get(s.ctx, id)
	s.Require().NoError(err)
	return a.UsageCount
}

func (s *SessionTestSuite) TestLoadStartsAtOrigin() {
	s.start()
	snap := s.session.Snapshot()
	s.Equal(models.SessionStateWatching, snap.State)
	s.Require().Len(snap.NodePath, 1)
	s.Equal(0, snap.NodePath[0].Depth)
	s.Empty(snap.NodePath[0].ParentNodeIDs)
	s.Equal(sampleFrame().Script, snap.NodePath[0].ConfirmedFrame.Script)
	s.Equal(100, snap.Points.Balance)
	s.Equal(5, snap.TargetFrames)
	s.Equal(fixedNow, snap.TakenAt)
}

func (s *SessionTestSuite) TestLoadUnknownDrama() {
	s.start()
	err := s.session.LoadDrama(s.ctx, "missing")
	s.ErrorIs(err, models.ErrDramaNotFound)
	s.Equal("d1", s.session.Snapshot().DramaID)
}

func (s *SessionTestSuite) TestPlaythroughEndsAfterTargetFrames() {
	s.generatorSucceeds()
	s.settlerSucceeds()
	s.start()

	for i := 0; i < 5; i++ {
		s.Require().NoError(s.session.RequestCandidates(s.ctx))
		snap := s.session.Snapshot()
		s.Require().Equal(models.SessionStateChoosing, snap.State)
		s.Require().Len(snap.Candidates, 3)
		s.Require().NoError(s.session.SelectCandidate(s.ctx, snap.Candidates[0].CandidateID))
	}
	s.reconcile.Wait()

	snap := s.session.Snapshot()
	s.Equal(models.SessionStateEnded, snap.State)
	s.True(snap.Flags.IsDemoEnd)
	s.Len(snap.NodePath, 6)
	for i, n := range snap.NodePath[1:] {
		s.Equal(i+1, n.Depth)
		s.Equal([]string{snap.NodePath[i].NodeID}, n.ParentNodeIDs)
	}
	// награда не начисляется за финальный кадр
	s.Equal(140, snap.Points.Balance)
	s.Equal(&models.PointsChange{Amount: 10, Kind: models.PointsChangeEarn}, snap.PendingChange)

	s.Equal(3+5, s.usage("actor-a"))
	s.Equal(5, s.usage("scene-s"))
	s.Equal(5, s.usage("prop-p"))

	s.Equal(5, s.notifier.count(models.SessionEventNodeCommitted))
	s.Equal(5, s.notifier.count(models.SessionEventSettlementDone))
	s.Empty(s.session.PendingSettlements())
	receipt, ok := s.reconcile.Receipt(snap.NodePath[5].NodeID)
	s.Require().True(ok)
	s.Equal("0xabc", receipt.TransactionID)

	err := s.session.RequestCandidates(s.ctx)
	s.ErrorIs(err, models.ErrInvalidState)
}

func (s *SessionTestSuite) TestRewardFinalFrame() {
	s.cfg.RewardFinalFrame = true
	s.cfg.TargetFrameCount = 1
	s.generatorSucceeds()
	s.settlerSucceeds()
	s.start()

	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	s.Require().NoError(s.session.SelectCandidate(s.ctx, s.session.Snapshot().Candidates[1].CandidateID))
	s.reconcile.Wait()

	s.Equal(models.SessionStateEnded, s.session.State())
	s.Equal(110, s.session.Points().Balance)
}

func (s *SessionTestSuite) TestRequestCandidatesFailureKeepsWatching() {
	s.gen.On("GenerateFrame", mock.Anything, mock.Anything).Return(nil, errors.New("upstream 500"))
	s.start()

	err := s.session.RequestCandidates(s.ctx)
	s.ErrorIs(err, models.ErrGenerationFailure)
	s.Equal(models.SessionStateWatching, s.session.State())
	s.Empty(s.session.Snapshot().Candidates)
}

func (s *SessionTestSuite) TestRefreshUsesFreeAllowanceThenCharges() {
	s.cfg.DailyFreeRefreshes = 1
	s.generatorSucceeds()
	s.start()
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	first := s.session.Snapshot().Candidates

	s.Require().NoError(s.session.RefreshCandidates(s.ctx))
	points := s.session.Points()
	s.Equal(100, points.Balance)
	s.Equal(0, points.DailyFreeRefreshRemaining)
	s.Nil(s.session.PeekPointsChange())
	s.NotEqual(first[0].CandidateID, s.session.Snapshot().Candidates[0].CandidateID)

	s.Require().NoError(s.session.RefreshCandidates(s.ctx))
	s.Equal(90, s.session.Points().Balance)
	s.Equal(&models.PointsChange{Amount: 10, Kind: models.PointsChangeSpend}, s.session.PeekPointsChange())
	s.Equal(models.SessionStateChoosing, s.session.State())

	s.session.ClearPointsChange()
	s.Nil(s.session.PeekPointsChange())
}

func (s *SessionTestSuite) TestRefreshInsufficientPointsSkipsGenerator() {
	s.cfg.DailyFreeRefreshes = 0
	s.cfg.InitialBalance = s.cfg.RefreshCost - 1
	s.generatorSucceeds()
	s.start()
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	before := s.session.Snapshot().Candidates

	err := s.session.RefreshCandidates(s.ctx)
	s.ErrorIs(err, models.ErrInsufficientPoints)
	s.gen.AssertNumberOfCalls(s.T(), "GenerateFrame", 3)
	points := s.session.Points()
	s.Equal(s.cfg.RefreshCost-1, points.Balance)
	s.Equal(0, points.DailyFreeRefreshRemaining)
	s.Equal(before, s.session.Snapshot().Candidates)
	s.Equal(models.SessionStateChoosing, s.session.State())
}

func (s *SessionTestSuite) TestRefreshWithExactBalanceSucceeds() {
	s.cfg.DailyFreeRefreshes = 0
	s.cfg.InitialBalance = s.cfg.RefreshCost
	s.generatorSucceeds()
	s.start()
	s.Require().NoError(s.session.RequestCandidates(s.ctx))

	s.Require().NoError(s.session.RefreshCandidates(s.ctx))
	points := s.session.Points()
	s.Equal(0, points.Balance)
	s.Equal(0, points.DailyFreeRefreshRemaining)
	s.Equal(&models.PointsChange{Amount: s.cfg.RefreshCost, Kind: models.PointsChangeSpend}, s.session.PeekPointsChange())
	s.gen.AssertNumberOfCalls(s.T(), "GenerateFrame", 6)
	s.Equal(models.SessionStateChoosing, s.session.State())
}

func (s *SessionTestSuite) TestRefreshGenerationFailureIsNotCharged() {
	s.cfg.DailyFreeRefreshes = 0
	s.gen.On("GenerateFrame", mock.Anything, mock.Anything).Return(sampleFrame(), nil).Times(3)
	s.gen.On("GenerateFrame", mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded"))
	s.start()
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	before := s.session.Snapshot().Candidates

	err := s.session.RefreshCandidates(s.ctx)
	s.ErrorIs(err, models.ErrGenerationFailure)
	s.Equal(100, s.session.Points().Balance)
	s.Nil(s.session.PeekPointsChange())
	s.Equal(before, s.session.Snapshot().Candidates)
	s.Equal(models.SessionStateChoosing, s.session.State())
}

func (s *SessionTestSuite) TestRefreshRequiresChoosing() {
	s.start()
	s.ErrorIs(s.session.RefreshCandidates(s.ctx), models.ErrInvalidState)
}

func (s *SessionTestSuite) TestSelectUnknownCandidate() {
	s.generatorSucceeds()
	s.start()
	s.ErrorIs(s.session.SelectCandidate(s.ctx, "nope"), models.ErrInvalidState)

	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	s.ErrorIs(s.session.SelectCandidate(s.ctx, "nope"), models.ErrInvalidState)
	s.Equal(models.SessionStateChoosing, s.session.State())
}

func (s *SessionTestSuite) TestSelectWithUnknownAssetChangesNothing() {
	ghost := sampleFrame()
	ghost.ActorIDs = []string{"actor-a", "ghost"}
	s.gen.On("GenerateFrame", mock.Anything, mock.Anything).Return(ghost, nil)
	s.start()
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	candidates := s.session.Snapshot().Candidates

	err := s.session.SelectCandidate(s.ctx, candidates[0].CandidateID)
	s.ErrorIs(err, models.ErrAssetNotFound)

	snap := s.session.Snapshot()
	s.Equal(models.SessionStateChoosing, snap.State)
	s.Len(snap.NodePath, 1)
	s.Equal(candidates, snap.Candidates)
	s.Equal(100, snap.Points.Balance)
	s.Equal(3, s.usage("actor-a"))
	s.settler.AssertNotCalled(s.T(), "Settle", mock.Anything, mock.Anything)
}

func (s *SessionTestSuite) TestSettlementFailureKeepsNode() {
	s.generatorSucceeds()
	s.settler.On("Settle", mock.Anything, mock.Anything).Return(nil, errors.New("rpc unavailable"))
	s.start()
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	s.Require().NoError(s.session.SelectCandidate(s.ctx, s.session.Snapshot().Candidates[0].CandidateID))
	s.reconcile.Wait()

	snap := s.session.Snapshot()
	s.Len(snap.NodePath, 2)
	s.Equal(models.SessionStateWatching, snap.State)
	pending := s.session.PendingSettlements()
	s.Require().Len(pending, 1)
	s.Equal(snap.NodePath[1].NodeID, pending[0].Request.Node.NodeID)
	s.Equal("viewer-1", pending[0].Request.Creator)
}

func (s *SessionTestSuite) TestCustomFrameRequiresScene() {
	s.generatorSucceeds()
	s.start()
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	s.Require().NoError(s.session.EnterCustomMode())

	err := s.session.SubmitCustomFrame(s.ctx, service.CompositionDraft{
		ActorIDs: []string{"actor-a"},
		Script:   "Alice waits.",
	})
	s.ErrorIs(err, models.ErrValidation)
	s.Equal(100, s.session.Points().Balance)
	s.Equal(models.SessionStateCustomEditing, s.session.State())
	s.gen.AssertNotCalled(s.T(), "ComposeFrame", mock.Anything, mock.Anything)
}

func (s *SessionTestSuite) TestCustomFrameSubmitAndConfirmRegistersAuthoredAsset() {
	s.generatorSucceeds()
	s.gen.On("ComposeFrame", mock.Anything, mock.Anything).Return(sampleFrame(), nil)
	s.settlerSucceeds()
	s.start()
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	s.Require().NoError(s.session.EnterCustomMode())
	s.True(s.session.Snapshot().Flags.IsCustomMode)

	draft := service.CompositionDraft{
		ActorIDs: []string{"actor-new"},
		SceneID:  "scene-s",
		Script:   "  The stranger boards the train.  ",
		NewAssets: []models.Asset{
			{AssetID: "actor-new", AssetType: models.AssetTypeActor, Name: "Stranger", Creator: "someone-else", UsageCount: 42},
		},
	}
	comp, err := s.session.UpdateComposition(s.ctx, draft)
	s.Require().NoError(err)
	s.True(comp.CanSubmit)

	s.Require().NoError(s.session.SubmitCustomFrame(s.ctx, draft))
	snap := s.session.Snapshot()
	s.Equal(models.SessionStateChoosing, snap.State)
	s.Equal(70, snap.Points.Balance)
	s.Require().Len(snap.Candidates, 1)
	custom := snap.Candidates[0]
	s.True(custom.IsEditable)
	s.Equal("The stranger boards the train.", custom.FrameData.Script)
	s.Nil(snap.Composition)

	s.Require().NoError(s.session.SelectCandidate(s.ctx, custom.CandidateID))
	s.reconcile.Wait()

	registered, err := s.assets.Get(s.ctx, "actor-new")
	s.Require().NoError(err)
	s.Equal("viewer-1", registered.Creator)
	s.Equal(1, registered.UsageCount)
	s.Equal(1, s.usage("scene-s"))
	s.Equal(80, s.session.Points().Balance)
}

func (s *SessionTestSuite) TestDiscardCustomCandidateRestoresSet() {
	s.generatorSucceeds()
	s.gen.On("ComposeFrame", mock.Anything, mock.Anything).Return(sampleFrame(), nil)
	s.start()
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	original := s.session.Snapshot().Candidates

	s.ErrorIs(s.session.DiscardCustomCandidate(), models.ErrInvalidState)

	s.Require().NoError(s.session.EnterCustomMode())
	s.Require().NoError(s.session.SubmitCustomFrame(s.ctx, service.CompositionDraft{
		ActorIDs: []string{"actor-a"},
		SceneID:  "scene-s",
		Script:   "Fog rolls in.",
	}))
	s.Require().NoError(s.session.DiscardCustomCandidate())

	snap := s.session.Snapshot()
	s.Equal(original, snap.Candidates)
	s.Equal(70, snap.Points.Balance, "custom cost is not refunded")
}

func (s *SessionTestSuite) TestCustomFrameInsufficientPoints() {
	s.cfg.InitialBalance = 20
	s.generatorSucceeds()
	s.start()
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	s.Require().NoError(s.session.EnterCustomMode())

	err := s.session.SubmitCustomFrame(s.ctx, service.CompositionDraft{ActorIDs: []string{"actor-a"}, SceneID: "scene-s", Script: "Rain."})
	s.ErrorIs(err, models.ErrInsufficientPoints)
	s.Equal(20, s.session.Points().Balance)
	s.gen.AssertNotCalled(s.T(), "ComposeFrame", mock.Anything, mock.Anything)
}

func (s *SessionTestSuite) TestCustomFrameGenerationFailure() {
	s.generatorSucceeds()
	s.gen.On("ComposeFrame", mock.Anything, mock.Anything).Return(nil, errors.New("render farm down"))
	s.start()
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	live := s.session.Snapshot().Candidates
	s.Require().NoError(s.session.EnterCustomMode())

	_, err := s.session.UpdateComposition(s.ctx, service.CompositionDraft{ActorIDs: []string{"actor-a"}, SceneID: "scene-s", Script: "Alice waits."})
	s.Require().NoError(err)

	err = s.session.SubmitCustomFrame(s.ctx, service.CompositionDraft{ActorIDs: []string{"actor-a"}, SceneID: "scene-s", Script: "Rain."})
	s.ErrorIs(err, models.ErrGenerationFailure)
	snap := s.session.Snapshot()
	s.Equal(models.SessionStateCustomEditing, snap.State)
	s.Equal(100, snap.Points.Balance)
	s.Equal(live, snap.Candidates)
	s.Require().NotNil(snap.Composition)
	s.Equal("Alice waits.", snap.Composition.Script)
}

func (s *SessionTestSuite) TestCustomFrameWithoutActorIsRejected() {
	s.generatorSucceeds()
	s.start()
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	s.Require().NoError(s.session.EnterCustomMode())

	err := s.session.SubmitCustomFrame(s.ctx, service.CompositionDraft{
		SceneID: "scene-s",
		Script:  "Nobody is here.",
	})
	s.ErrorIs(err, models.ErrValidation)
	s.Equal(100, s.session.Points().Balance)
	s.Nil(s.session.PeekPointsChange())
	s.Equal(models.SessionStateCustomEditing, s.session.State())
	s.gen.AssertNotCalled(s.T(), "ComposeFrame", mock.Anything, mock.Anything)
}

func (s *SessionTestSuite) TestFailedSubmitKeepsPreviousComposition() {
	s.generatorSucceeds()
	s.cfg.InitialBalance = 20
	s.start()
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	s.Require().NoError(s.session.EnterCustomMode())

	_, err := s.session.UpdateComposition(s.ctx, service.CompositionDraft{
		ActorIDs: []string{"actor-a"},
		SceneID:  "scene-s",
		Script:   "Alice waits.",
	})
	s.Require().NoError(err)

	assertKept := func() {
		comp := s.session.Snapshot().Composition
		s.Require().NotNil(comp)
		s.Require().NotNil(comp.Scene)
		s.Equal("scene-s", comp.Scene.AssetID)
		s.Equal("Alice waits.", comp.Script)
	}

	err = s.session.SubmitCustomFrame(s.ctx, service.CompositionDraft{ActorIDs: []string{"actor-a"}, Script: "x"})
	s.ErrorIs(err, models.ErrValidation)
	assertKept()

	err = s.session.SubmitCustomFrame(s.ctx, service.CompositionDraft{ActorIDs: []string{"actor-a"}, SceneID: "scene-s", Script: "Rain."})
	s.ErrorIs(err, models.ErrInsufficientPoints)
	assertKept()

	err = s.session.SubmitCustomFrame(s.ctx, service.CompositionDraft{ActorIDs: []string{"ghost"}, SceneID: "scene-s", Script: "Rain."})
	s.ErrorIs(err, models.ErrAssetNotFound)
	assertKept()

	s.Equal(20, s.session.Points().Balance)
	s.gen.AssertNotCalled(s.T(), "ComposeFrame", mock.Anything, mock.Anything)
}

func (s *SessionTestSuite) TestExitCustomMode() {
	s.generatorSucceeds()
	s.start()
	s.ErrorIs(s.session.EnterCustomMode(), models.ErrInvalidState)
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	s.Require().NoError(s.session.EnterCustomMode())
	s.Require().NoError(s.session.ExitCustomMode())
	s.Equal(models.SessionStateChoosing, s.session.State())
	s.ErrorIs(s.session.ExitCustomMode(), models.ErrInvalidState)
}

func (s *SessionTestSuite) TestBusyDuringGenerationAndRestartDiscardsResult() {
	release := make(chan struct{})
	s.gen.On("GenerateFrame", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(sampleFrame(), nil)
	s.start()

	done := make(chan error, 1)
	go func() { done <- s.session.RequestCandidates(s.ctx) }()
	s.Eventually(func() bool {
		return s.session.State() == models.SessionStateGenerating
	}, time.Second, 5*time.Millisecond)

	s.ErrorIs(s.session.SelectCandidate(s.ctx, "any"), models.ErrSessionBusy)
	s.ErrorIs(s.session.LoadDrama(s.ctx, "d1"), models.ErrSessionBusy)
	s.True(s.session.Snapshot().Flags.IsTransitioning)

	s.Require().NoError(s.session.Restart(s.ctx))
	close(release)

	err := <-done
	s.ErrorIs(err, models.ErrInvalidState)
	snap := s.session.Snapshot()
	s.Equal(models.SessionStateWatching, snap.State)
	s.Empty(snap.Candidates)
	s.Len(snap.NodePath, 1)
}

func (s *SessionTestSuite) TestRestartIsIdempotent() {
	s.generatorSucceeds()
	s.settlerSucceeds()
	s.start()
	origin := s.session.Snapshot().NodePath[0].NodeID
	s.Require().NoError(s.session.RequestCandidates(s.ctx))
	s.Require().NoError(s.session.SelectCandidate(s.ctx, s.session.Snapshot().Candidates[0].CandidateID))
	s.reconcile.Wait()

	s.Require().NoError(s.session.Restart(s.ctx))
	once := s.session.Snapshot()
	s.Require().NoError(s.session.Restart(s.ctx))
	twice := s.session.Snapshot()

	s.Equal(once, twice)
	s.Require().Len(twice.NodePath, 1)
	s.Equal(origin, twice.NodePath[0].NodeID)
	s.Equal(100, twice.Points.Balance)
	s.Equal(s.cfg.DailyFreeRefreshes, twice.Points.DailyFreeRefreshRemaining)
	s.Nil(twice.PendingChange)
}

func TestSession_RestartBeforeLoad(t *testing.T) {
	sess := service.NewSession("s", service.DefaultGameplayConfig(), service.SessionDeps{})
	require.NoError(t, sess.Restart(context.Background()))
	assert.Equal(t, models.SessionStateLoading, sess.State())
	assert.ErrorIs(t, sess.RequestCandidates(context.Background()), models.ErrInvalidState)
}
