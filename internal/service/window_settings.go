package service

import (
	"fmt"
	"strconv"
)

// ─────────────────────────────────────────────────────────────
// Window Size Persistence
// ─────────────────────────────────────────────────────────────

// Settings is the key/value store the console keeps its preferences in.
// *storage.SettingsStore implements it.
type Settings interface {
	GetInt(key string, def int) int
	Set(key, value string) error
}

// WindowSize holds the saved window dimensions.
type WindowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WindowSettingsService persists the console window size between sessions.
type WindowSettingsService struct {
	settings Settings
}

func NewWindowSettingsService(settings Settings) *WindowSettingsService {
	return &WindowSettingsService{settings: settings}
}

const (
	settingWindowWidth  = "window_width"
	settingWindowHeight = "window_height"
	defaultWindowWidth  = 1280
	defaultWindowHeight = 800
	minWindowWidth      = 800
	minWindowHeight     = 600
)

// LoadWindowSize returns the saved window dimensions, or the defaults when
// nothing usable is stored.
func (s *WindowSettingsService) LoadWindowSize() WindowSize {
	if s.settings == nil {
		return WindowSize{Width: defaultWindowWidth, Height: defaultWindowHeight}
	}
	w := s.settings.GetInt(settingWindowWidth, defaultWindowWidth)
	h := s.settings.GetInt(settingWindowHeight, defaultWindowHeight)
	if w < minWindowWidth {
		w = defaultWindowWidth
	}
	if h < minWindowHeight {
		h = defaultWindowHeight
	}
	return WindowSize{Width: w, Height: h}
}

// SaveWindowSize persists the current window dimensions.
func (s *WindowSettingsService) SaveWindowSize(width, height int) error {
	if s.settings == nil {
		return fmt.Errorf("window settings: no store")
	}
	if err := s.settings.Set(settingWindowWidth, strconv.Itoa(width)); err != nil {
		return fmt.Errorf("save window width: %w", err)
	}
	if err := s.settings.Set(settingWindowHeight, strconv.Itoa(height)); err != nil {
		return fmt.Errorf("save window height: %w", err)
	}
	return nil
}
