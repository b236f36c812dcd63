package services

import (
	"sync"
	"time"
)

// Settings are the runtime knobs exposed through the settings API
type Settings struct {
	AutoAnalyze            bool   `json:"auto_analyze"`
	RefreshIntervalSeconds int    `json:"refresh_interval_seconds"`
	AnalysisTimeoutSeconds int    `json:"analysis_timeout_seconds"`
	LLMProvider            string `json:"llm_provider"`
	LLMEngine              string `json:"llm_engine"`
	LLMConfigured          bool   `json:"llm_configured"`
	TelemetryEnabled       bool   `json:"telemetry_enabled"`
}

// SettingsUpdate carries the writable fields; nil fields are left unchanged
type SettingsUpdate struct {
	AutoAnalyze            *bool `json:"auto_analyze"`
	RefreshIntervalSeconds *int  `json:"refresh_interval_seconds" validate:"omitempty,min=1,max=3600"`
	AnalysisTimeoutSeconds *int  `json:"analysis_timeout_seconds" validate:"omitempty,min=1,max=600"`
}

// SettingsService holds the current settings for the lifetime of the process
type SettingsService struct {
	mu       sync.RWMutex
	settings Settings
}

// NewSettingsService creates a SettingsService seeded from configuration
func NewSettingsService(initial Settings) *SettingsService {
	return &SettingsService{settings: initial}
}

// Get returns a copy of the current settings
func (s *SettingsService) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update applies the non-nil fields of u and returns the result.
// Values are expected to be validated by the caller.
func (s *SettingsService) Update(u SettingsUpdate) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.AutoAnalyze != nil {
		s.settings.AutoAnalyze = *u.AutoAnalyze
	}
	if u.RefreshIntervalSeconds != nil {
		s.settings.RefreshIntervalSeconds = *u.RefreshIntervalSeconds
	}
	if u.AnalysisTimeoutSeconds != nil {
		s.settings.AnalysisTimeoutSeconds = *u.AnalysisTimeoutSeconds
	}
	return s.settings
}

// AnalysisTimeout returns the configured analysis timeout
func (s *SettingsService) AnalysisTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.settings.AnalysisTimeoutSeconds) * time.Second
}

// AutoAnalyze reports whether new incidents are analyzed on creation
func (s *SettingsService) AutoAnalyze() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.AutoAnalyze && s.settings.LLMConfigured
}
