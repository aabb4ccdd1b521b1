// Package types holds the data model shared across the pipeline: project
// configuration, chapters, characters, segments, chunks, pipeline state,
// QC results, and export manifests.
package types

import "time"

// Project describes an on-disk project bundle rooted at <root>/<id>/.
type Project struct {
	ID   string `json:"id"`
	Root string `json:"root"`
}

// ProjectConfig is the single source of truth for generation intent. It is
// persisted as project.json at the project root.
type ProjectConfig struct {
	ID         string               `json:"id"`
	Version    string               `json:"version"`
	Created    time.Time            `json:"created"`
	Languages  []string             `json:"languages"`
	Chapters   []Chapter            `json:"chapters"`
	Characters map[string]Character `json:"characters"`
	Generation GenerationConfig     `json:"generation"`
	QC         QCConfig             `json:"qc"`
	Mix        MixConfig            `json:"mix"`
	QCFinal    QCFinalConfig        `json:"qc_final"`
	Export     ExportConfig         `json:"export"`
}

// Chapter is the unit of scheduling, QC aggregation, and export.
type Chapter struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	Language           string            `json:"language"`
	SourcePath         string            `json:"source_path"`
	DefaultCharacterID string            `json:"default_character"`
	CharacterID        string            `json:"character,omitempty"`
	Mode               ChapterMode       `json:"mode"`
	Direction          map[string]string `json:"direction,omitempty"`
}

// ChapterMode selects segmentation strategy: exactly one speaker, or
// multi-speaker line-tagged text.
type ChapterMode string

const (
	ModeSingle ChapterMode = "single"
	ModeMulti  ChapterMode = "multi"
)

// EffectiveCharacter returns the chapter's character, falling back to the
// chapter's default character when unset.
func (c Chapter) EffectiveCharacter() string {
	if c.CharacterID != "" {
		return c.CharacterID
	}
	return c.DefaultCharacterID
}

// Character is a named voice identity. If Engine is a cloning backend,
// ReferenceAudio must exist and point inside the project; otherwise Voice
// must be set.
type Character struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Engine         string `json:"engine"`
	Voice          string `json:"voice,omitempty"`
	ReferenceAudio string `json:"reference_audio,omitempty"`
	Dialect        string `json:"dialect,omitempty"`
	Persona        string `json:"persona,omitempty"`
}

// EngineConfig describes one pluggable TTS engine entry in
// generation.engines.
type EngineConfig struct {
	Name            string            `json:"name"`
	Kind            string            `json:"kind"`
	Endpoint        string            `json:"endpoint,omitempty"`
	APIKeyEnv       string            `json:"api_key_env,omitempty"`
	Concurrency     int               `json:"concurrency,omitempty"`
	RateLimitMs     int               `json:"rate_limit_ms,omitempty"`
	SupportsCloning bool              `json:"supports_cloning"`
	SupportsSSML    bool              `json:"supports_ssml"`
	RequiresGPU     bool              `json:"requires_gpu"`
	Options         map[string]string `json:"options,omitempty"`
}

// ChunkStrategy selects how a segment's text is split into synthesis-sized
// chunks.
type ChunkStrategy string

const (
	StrategyBreathGroup ChunkStrategy = "breath_group"
	StrategySentence    ChunkStrategy = "sentence"
	StrategyFixed       ChunkStrategy = "fixed"
)

// VRAMPolicy governs GPU lifecycle calls after each chapter.
type VRAMPolicy string

const (
	VRAMEmptyCachePerChapter VRAMPolicy = "empty_cache_per_chapter"
	VRAMConservative         VRAMPolicy = "conservative"
	VRAMReloadPeriodic       VRAMPolicy = "reload_periodic"
)

// FallbackScope controls whether a dead primary engine stays dead for the
// rest of the project run or only within a chapter.
type FallbackScope string

const (
	FallbackChapter FallbackScope = "chapter"
	FallbackProject FallbackScope = "project"
)

// GenerationConfig holds every option under project.json's "generation"
// section.
type GenerationConfig struct {
	Engines               []EngineConfig    `json:"engines"`
	ChunkMaxChars          int               `json:"chunk_max_chars"`
	ChunkStrategy          ChunkStrategy     `json:"chunk_strategy"`
	CrossfadeMs            int               `json:"crossfade_ms"`
	CrossfadeMinMs         int               `json:"crossfade_min_ms"`
	CrossfadeOverrides     map[string]int    `json:"crossfade_overrides,omitempty"`
	LeadingSilenceMs       int               `json:"leading_silence_ms"`
	MaxRetriesPerChunk     int               `json:"max_retries_per_chunk"`
	FailThresholdPercent   float64           `json:"fail_threshold_percent"`
	EdgeTTSRateLimitMs     int               `json:"edge_tts_rate_limit_ms"`
	EdgeTTSConcurrency     int               `json:"edge_tts_concurrency"`
	EdgeTTSSSML            bool              `json:"edge_tts_ssml"`
	XTTSTemperature        float64           `json:"xtts_temperature"`
	XTTSRepetitionPenalty  float64           `json:"xtts_repetition_penalty"`
	XTTSVRAMManagement     VRAMPolicy        `json:"xtts_vram_management"`
	XTTSReloadEveryN       int               `json:"xtts_reload_every_n"`
	FallbackScope          FallbackScope     `json:"fallback_scope"`
	FallbackChain          []string          `json:"fallback_chain"`
}

// QCConfig holds per-check thresholds for the chunk QC scanner (§4.7).
type QCConfig struct {
	SNRMinDB                    float64 `json:"snr_min_db"`
	MaxDurationDeviationPercent float64 `json:"max_duration_deviation_percent"`
	ClippingThresholdDBFS       float64 `json:"clipping_threshold_dbfs"`
	LUFSDeviationMax            float64 `json:"lufs_deviation_max"`
}

// DuckingConfig holds the VAD-ducking shape (§4.10).
type DuckingConfig struct {
	Method         string  `json:"method"`
	VADThreshold   float64 `json:"vad_threshold"`
	LookAheadMs    int     `json:"look_ahead_ms"`
	AttackMs       int     `json:"attack_ms"`
	ReleaseMs      int     `json:"release_ms"`
	AttenuationDB  float64 `json:"attenuation_db"`
}

// MixConfig holds the loudness contract and ducking shape (§4.10).
type MixConfig struct {
	MasterVolume          float64       `json:"master_volume"`
	TargetLUFS            float64       `json:"target_lufs"`
	TruePeakLimitDBTP     float64       `json:"true_peak_limit_dbtp"`
	GapBetweenChaptersSec float64       `json:"gap_between_chapters_sec"`
	Ducking               DuckingConfig `json:"ducking"`
}

// QCFinalConfig holds thresholds used only by the QC-final gate (§4.11).
type QCFinalConfig struct {
	SilenceThresholdDBFS float64 `json:"silence_threshold_dbfs"`
}

// ExportConfig holds delivery format options (§4.12).
type ExportConfig struct {
	Formats       []string          `json:"formats"`
	MP3Bitrate    int               `json:"mp3_bitrate"`
	M4BAACBitrate int               `json:"m4b_aac_bitrate"`
	IncludeCover  bool              `json:"include_cover_art"`
	CoverArt      string            `json:"cover_art,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
