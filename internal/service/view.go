package service

import (
	"sync"

	"street_trees/internal/models"
)

// ViewService records what the map surface and the widget layer were told
// to display and forwards every change to a listener.
type ViewService struct {
	mu       sync.RWMutex
	state    models.ViewState
	onChange func(models.ViewState)
}

func NewViewService() *ViewService {
	return &ViewService{state: models.ViewState{
		DimPredicate:        models.TautologyWhere,
		CategoryListEnabled: true,
		ResetEnabled:        true,
	}}
}

// OnChange sets the listener. Used to relay view changes on the pipeline bus.
func (v *ViewService) OnChange(fn func(models.ViewState)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

func (v *ViewService) Current() models.ViewState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

func (v *ViewService) SetDimEffect(p models.Predicate) {
	v.update(func(s *models.ViewState) { s.DimPredicate = p.String() })
}

func (v *ViewService) SetHighlightRegion(region *models.Polygon) {
	v.update(func(s *models.ViewState) {
		if region == nil {
			s.HighlightRegion = nil
			return
		}
		r := models.Polygon{Ring: append([]models.Point(nil), region.Ring...)}
		s.HighlightRegion = &r
	})
}

func (v *ViewService) SetCategoryListEnabled(enabled bool) {
	v.update(func(s *models.ViewState) { s.CategoryListEnabled = enabled })
}

func (v *ViewService) SetResetEnabled(enabled bool) {
	v.update(func(s *models.ViewState) { s.ResetEnabled = enabled })
}

func (v *ViewService) FocusMap() {
	v.update(func(s *models.ViewState) { s.FocusRequests++ })
}

func (v *ViewService) update(fn func(*models.ViewState)) {
	v.mu.Lock()
	fn(&v.state)
	st, listener := v.state, v.onChange
	v.mu.Unlock()
	if listener != nil {
		listener(st)
	}
}
