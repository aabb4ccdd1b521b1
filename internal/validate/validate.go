// Package validate implements the Node 2 hard gate (§4.2/§6): the checks
// a project must pass before generation, mixing, or export are allowed
// to run against it.
package validate

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/socialawy/audioformation/pkg/types"
)

// clonableEngines are engine kinds the original treats as requiring an
// assigned voice ID rather than reference audio.
var clonableEngines = map[string]bool{
	"edge":       true,
	"elevenlabs": true,
	"openai-tts": true,
	"gemini-tts": true,
}

// Result collects pass/warn/fail findings the way the original's
// ValidationResult does.
type Result struct {
	Passed   []string
	Warnings []string
	Failures []string
}

// OK reports whether the project cleared the gate: no failures at all.
// Warnings never block.
func (r *Result) OK() bool { return len(r.Failures) == 0 }

func (r *Result) pass(format string, args ...any) { r.Passed = append(r.Passed, fmt.Sprintf(format, args...)) }
func (r *Result) warn(format string, args ...any) { r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...)) }
func (r *Result) fail(format string, args ...any) { r.Failures = append(r.Failures, fmt.Sprintf(format, args...)) }

// FFmpegLookup abstracts ffmpeg availability detection so tests don't
// depend on the host's PATH.
type FFmpegLookup func(path string) (string, error)

// LookPathFFmpeg is the production FFmpegLookup, backed by os/exec.
func LookPathFFmpeg(path string) (string, error) { return exec.LookPath(path) }

// ValidateProject runs every Node 2 check against cfg, whose chapter
// source paths and character reference audio are resolved relative to
// projectRoot (the project's on-disk directory, from
// project.Store.LocalPath).
func ValidateProject(cfg *types.ProjectConfig, projectRoot, ffmpegPath string, lookup FFmpegLookup) *Result {
	result := &Result{}

	checkTextFiles(cfg, projectRoot, result)
	checkCharacters(cfg, projectRoot, result)
	checkGenerationConfig(cfg, result)
	checkMixConfig(cfg, result)
	checkFFmpeg(ffmpegPath, lookup, result)

	return result
}

func checkTextFiles(cfg *types.ProjectConfig, projectRoot string, result *Result) {
	if len(cfg.Chapters) == 0 {
		result.fail("No chapters defined in project.json.")
		return
	}

	for _, ch := range cfg.Chapters {
		if ch.SourcePath == "" {
			result.fail("Chapter %q: no source file specified.", ch.ID)
			continue
		}
		sourcePath := filepath.Join(projectRoot, ch.SourcePath)
		info, err := os.Stat(sourcePath)
		if err != nil {
			result.fail("Chapter %q: source file not found: %s", ch.ID, ch.SourcePath)
			continue
		}
		if info.Size() == 0 {
			result.fail("Chapter %q: source file is empty: %s", ch.ID, ch.SourcePath)
			continue
		}
		content, err := os.ReadFile(sourcePath)
		if err != nil || len(strings.TrimSpace(string(content))) == 0 {
			result.fail("Chapter %q: source file is empty: %s", ch.ID, ch.SourcePath)
			continue
		}
		result.pass("Chapter %q: text file OK (%d chars).", ch.ID, len(content))

		if ch.Language == "" {
			result.warn("Chapter %q: no language tag specified.", ch.ID)
		}
	}
}

func checkCharacters(cfg *types.ProjectConfig, projectRoot string, result *Result) {
	if len(cfg.Characters) == 0 {
		result.fail("No characters defined in project.json.")
		return
	}

	for id, char := range cfg.Characters {
		if char.Engine == "" {
			result.fail("Character %q: no engine specified.", id)
			continue
		}

		switch {
		case clonableEngines[char.Engine]:
			if char.Voice == "" {
				result.fail("Character %q: engine %q requires a voice ID.", id, char.Engine)
			} else {
				result.pass("Character %q: voice %q on engine %q.", id, char.Voice, char.Engine)
			}
		case char.Engine == "xtts":
			if char.ReferenceAudio == "" {
				result.fail("Character %q: xtts engine requires reference_audio.", id)
			} else if _, err := os.Stat(filepath.Join(projectRoot, char.ReferenceAudio)); err != nil {
				result.fail("Character %q: reference audio not found: %s", id, char.ReferenceAudio)
			} else {
				result.pass("Character %q: xtts with reference %q.", id, char.ReferenceAudio)
			}
		default:
			result.warn("Character %q: unknown engine %q.", id, char.Engine)
		}
	}

	for _, ch := range cfg.Chapters {
		switch ch.Mode {
		case types.ModeMulti:
			if ch.DefaultCharacterID != "" {
				if _, ok := cfg.Characters[ch.DefaultCharacterID]; !ok {
					result.fail("Chapter %q: default_character %q not found.", ch.ID, ch.DefaultCharacterID)
				}
			}
		default:
			if ch.CharacterID != "" {
				if _, ok := cfg.Characters[ch.CharacterID]; !ok {
					result.fail("Chapter %q: references unknown character %q.", ch.ID, ch.CharacterID)
				}
			}
		}
	}
}

func checkGenerationConfig(cfg *types.ProjectConfig, result *Result) {
	gen := cfg.Generation
	if len(gen.Engines) == 0 && gen.ChunkMaxChars == 0 {
		result.fail("No generation config in project.json.")
		return
	}

	if gen.ChunkMaxChars < 50 {
		result.warn("chunk_max_chars=%d is very small (min recommended: 50).", gen.ChunkMaxChars)
	} else if gen.ChunkMaxChars > 500 {
		result.warn("chunk_max_chars=%d is large — may cause XTTS quality issues.", gen.ChunkMaxChars)
	}

	if gen.CrossfadeMs < gen.CrossfadeMinMs {
		result.warn("crossfade_ms=%d is below crossfade_min_ms=%d.", gen.CrossfadeMs, gen.CrossfadeMinMs)
	}

	result.pass("Generation config present.")
}

func checkMixConfig(cfg *types.ProjectConfig, result *Result) {
	if cfg.Mix.TargetLUFS == 0 {
		result.fail("No target_lufs defined in mix config.")
	} else {
		result.pass("LUFS target: %g", cfg.Mix.TargetLUFS)
	}

	if cfg.Mix.TruePeakLimitDBTP == 0 {
		result.warn("No true_peak_limit defined in mix config.")
	}
}

func checkFFmpeg(ffmpegPath string, lookup FFmpegLookup, result *Result) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if lookup == nil {
		lookup = LookPathFFmpeg
	}
	resolved, err := lookup(ffmpegPath)
	if err != nil {
		result.fail("ffmpeg not found on PATH. Required for audio processing and export.")
		return
	}
	result.pass("ffmpeg found: %s", resolved)
}
