package project

import "github.com/socialawy/audioformation/pkg/types"

// DefaultConfig returns the project.json skeleton written by Create,
// mirroring the original pipeline's exact default thresholds.
func DefaultConfig(id string) types.ProjectConfig {
	return types.ProjectConfig{
		ID:         id,
		Version:    "1.0",
		Languages:  []string{"en"},
		Chapters:   []types.Chapter{},
		Characters: map[string]types.Character{},
		Generation: types.GenerationConfig{
			Engines:               []types.EngineConfig{},
			ChunkMaxChars:         200,
			ChunkStrategy:         types.StrategyBreathGroup,
			CrossfadeMs:           120,
			CrossfadeMinMs:        50,
			LeadingSilenceMs:      100,
			MaxRetriesPerChunk:    3,
			FailThresholdPercent:  5.0,
			EdgeTTSRateLimitMs:    200,
			EdgeTTSConcurrency:    4,
			EdgeTTSSSML:           false,
			XTTSTemperature:       0.65,
			XTTSRepetitionPenalty: 2.0,
			XTTSVRAMManagement:    types.VRAMEmptyCachePerChapter,
			XTTSReloadEveryN:      50,
			FallbackScope:         types.FallbackChapter,
			FallbackChain:         []string{},
		},
		QC: types.QCConfig{
			SNRMinDB:                    20.0,
			MaxDurationDeviationPercent: 30.0,
			ClippingThresholdDBFS:       -0.5,
			LUFSDeviationMax:            3.0,
		},
		Mix: types.MixConfig{
			MasterVolume:          1.0,
			TargetLUFS:            -16.0,
			TruePeakLimitDBTP:     -1.0,
			GapBetweenChaptersSec: 2.0,
			Ducking: types.DuckingConfig{
				Method:        "energy",
				VADThreshold:  0.50,
				LookAheadMs:   200,
				AttackMs:      100,
				ReleaseMs:     500,
				AttenuationDB: -12.0,
			},
		},
		QCFinal: types.QCFinalConfig{
			SilenceThresholdDBFS: -40.0,
		},
		Export: types.ExportConfig{
			Formats:       []string{"mp3"},
			MP3Bitrate:    192,
			M4BAACBitrate: 128,
			IncludeCover:  false,
			Metadata:      map[string]string{},
		},
	}
}
