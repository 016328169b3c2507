package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"street_trees/internal/models"
	"street_trees/internal/pipeline"
	"street_trees/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error
	viewers       map[int]models.User
	viewerErr     error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}
func (m *mockAuth) Viewer(userID int) (models.User, error) {
	if m.viewerErr != nil {
		return models.User{}, m.viewerErr
	}
	u, ok := m.viewers[userID]
	if !ok {
		return models.User{}, service.ErrUserNotFound
	}
	return u, nil
}

// mockExplorer records inbound calls and serves canned results. Subscribe
// goes through a real bus so tests can publish.
type mockExplorer struct {
	mu   sync.Mutex
	bus  *pipeline.EventBus
	subs int

	filters   models.FilterSnapshot
	summary   models.SummaryRecord
	bins      []models.HistogramBin
	species   []models.CategoryCount
	speciesEr error
	anim      models.AnimationState
	distance  float64

	// returned by the matching mutation
	categoryErr error
	rangeErr    error
	regionErr   error
	distanceErr error
	resetErr    error

	lastCategory *string
	lastRange    models.Range
	lastRegion   *models.Polygon
	lastCenter   *models.Point
	lastRadius   float64
	lastPlay     models.Direction
	playCalls    int
	stopCalls    int
	resetCalls   int
}

func newMockExplorer() *mockExplorer {
	return &mockExplorer{
		bus:     pipeline.NewEventBus(),
		filters: models.FilterSnapshot{Range: models.Range{Min: 0, Max: 300}},
	}
}

func (m *mockExplorer) Start() {}
func (m *mockExplorer) Close() {}

func (m *mockExplorer) Filters() models.FilterSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filters
}

func (m *mockExplorer) SelectCategory(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.categoryErr != nil {
		return m.categoryErr
	}
	m.lastCategory = &name
	m.filters.Category = &name
	return nil
}

func (m *mockExplorer) ClearCategory() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.categoryErr != nil {
		return m.categoryErr
	}
	m.lastCategory = nil
	m.filters.Category = nil
	return nil
}

func (m *mockExplorer) ChangeNumericRange(min, max float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRange = models.Range{Min: min, Max: max}
	if m.rangeErr != nil {
		return m.rangeErr
	}
	m.filters.Range = m.lastRange
	return nil
}

func (m *mockExplorer) DrawRegion(region models.Polygon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRegion = &region
	if m.regionErr != nil {
		return m.regionErr
	}
	m.filters.Region = &region
	return nil
}

func (m *mockExplorer) DrawRegionAround(center models.Point, radiusKm float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCenter = &center
	m.lastRadius = radiusKm
	if m.regionErr != nil {
		return m.regionErr
	}
	m.distance = radiusKm
	return nil
}

func (m *mockExplorer) SetSearchDistance(radiusKm float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRadius = radiusKm
	if m.distanceErr != nil {
		return m.distanceErr
	}
	m.distance = radiusKm
	return nil
}

func (m *mockExplorer) SearchDistance() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.distance
}

func (m *mockExplorer) ClearRegion() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters.Region = nil
	m.distance = 0
	return nil
}

func (m *mockExplorer) Summary() models.SummaryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

func (m *mockExplorer) Histogram() []models.HistogramBin {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bins
}

func (m *mockExplorer) TopSpecies(ctx context.Context) ([]models.CategoryCount, error) {
	return m.species, m.speciesEr
}

func (m *mockExplorer) Animation() models.AnimationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.anim
}

func (m *mockExplorer) Play(dir models.Direction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playCalls++
	m.lastPlay = dir
	m.anim.Playing = true
	m.anim.Direction = dir.String()
}

func (m *mockExplorer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	m.anim.Playing = false
}

func (m *mockExplorer) ResetAnimation() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
	return m.resetErr
}

func (m *mockExplorer) Subscribe(topic string, fn pipeline.Handler) func() {
	unsub := m.bus.On(topic, fn)
	m.mu.Lock()
	m.subs++
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			m.mu.Lock()
			m.subs--
			m.mu.Unlock()
		})
	}
}

func (m *mockExplorer) activeSubs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs
}

type mockView struct {
	state models.ViewState
}

func (m *mockView) Current() models.ViewState { return m.state }

type mockEventLog struct {
	resp     []models.ExplorerEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
	lastUser int
	calls    int
}

func (m *mockEventLog) Record(ctx context.Context, e models.ExplorerEvent) error {
	return m.err
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.ExplorerEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastUser = f.UserID
	m.calls++
	return m.resp, m.err
}

// mockActivity records which viewer each command ran for.
type mockActivity struct {
	mu    sync.Mutex
	users []int
}

func (m *mockActivity) Run(context.Context) {}

func (m *mockActivity) Attribute(userID int, cmd func() error) error {
	m.mu.Lock()
	m.users = append(m.users, userID)
	m.mu.Unlock()
	return cmd()
}

func (m *mockActivity) commands() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.users...)
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

// newExplorerService wires an authorized viewer with the given explorer.
func newExplorerService(ex *mockExplorer) *service.Service {
	return &service.Service{
		Authorization: &mockAuth{parseID: 1},
		Activity:      &mockActivity{},
		Explorer:      ex,
		ViewState:     &mockView{state: models.ViewState{CategoryListEnabled: true, ResetEnabled: true}},
	}
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
