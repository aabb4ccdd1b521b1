// Package export implements the exporter (§4.12): MP3/M4B delivery via
// ffmpeg, ffmetadata chapter-document generation, cover-art attachment,
// and a SHA-256 manifest over the exported tree.
package export

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"crypto/sha256"

	"github.com/socialawy/audioformation/internal/pcm"
	"github.com/socialawy/audioformation/pkg/types"
)

// Exporter runs the ffmpeg subprocesses that turn mixed chapter renders
// into delivery formats.
type Exporter struct {
	FFmpegPath string
}

// New returns an Exporter using the given ffmpeg binary, defaulting to
// "ffmpeg" on PATH when empty.
func New(ffmpegPath string) *Exporter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Exporter{FFmpegPath: ffmpegPath}
}

// ExportMP3 transcodes inputPath to an MP3 at outputPath with the given
// bitrate in kbps.
func (e *Exporter) ExportMP3(ctx context.Context, inputPath, outputPath string, bitrateKbps int) error {
	ctx, cancel := context.WithTimeout(ctx, 300*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.FFmpegPath, "-hide_banner", "-y",
		"-i", inputPath, "-b:a", fmt.Sprintf("%dk", bitrateKbps), outputPath)

	var output bytes.Buffer
	cmd.Stderr = &output
	cmd.Stdout = &output

	log.Printf("ffmpeg export mp3: %s", cmd.String())
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("export: ffmpeg mp3 pass: %w\noutput: %s", err, output.String())
	}
	return checkNonEmpty(outputPath)
}

// ChapterRender is one mixed chapter file ready for M4B assembly, in
// playback order.
type ChapterRender struct {
	Path  string
	Title string
}

// ExportM4B concatenates chapters (in the given order) into a single M4B
// with embedded chapter markers, optional cover art, and the metadata the
// project's ExportConfig carries. workDir holds the scratch concat-list
// and ffmetadata files, which are removed before returning.
func (e *Exporter) ExportM4B(ctx context.Context, chapters []ChapterRender, cfg types.ExportConfig, bookTitle, workDir, outputPath string) error {
	if len(chapters) == 0 {
		return fmt.Errorf("export: no chapters to assemble into m4b")
	}

	concatListPath := filepath.Join(workDir, "concat_list.txt")
	metaPath := filepath.Join(workDir, "metadata.txt")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("export: create work dir: %w", err)
	}
	defer os.Remove(concatListPath)
	defer os.Remove(metaPath)

	var concatLines []string
	var chapterMarks []chapterMark
	currentMs := 0

	for _, ch := range chapters {
		abs, err := filepath.Abs(ch.Path)
		if err != nil {
			return fmt.Errorf("export: resolve %s: %w", ch.Path, err)
		}
		safePath := strings.ReplaceAll(filepath.ToSlash(abs), "'", `'\''`)
		concatLines = append(concatLines, fmt.Sprintf("file '%s'", safePath))

		clip, err := pcm.ReadFile(ch.Path)
		if err != nil {
			return fmt.Errorf("export: read chapter duration %s: %w", ch.Path, err)
		}
		durationMs := int(clip.DurationMs())

		chapterMarks = append(chapterMarks, chapterMark{
			Title: ch.Title,
			Start: currentMs,
			End:   currentMs + durationMs,
		})
		currentMs += durationMs
	}

	if err := os.WriteFile(concatListPath, []byte(strings.Join(concatLines, "\n")), 0o644); err != nil {
		return fmt.Errorf("export: write concat list: %w", err)
	}

	ffmetadata := generateFFMetadata(chapterMarks, bookTitle, cfg.Metadata)
	if err := os.WriteFile(metaPath, []byte(ffmetadata), 0o644); err != nil {
		return fmt.Errorf("export: write ffmetadata: %w", err)
	}

	hasCover := cfg.IncludeCover && cfg.CoverArt != ""
	if hasCover {
		if _, err := os.Stat(cfg.CoverArt); err != nil {
			hasCover = false
		}
	}

	args := []string{
		"-y", "-hide_banner",
		"-f", "concat", "-safe", "0", "-i", concatListPath,
		"-i", metaPath,
	}
	mapArgs := []string{"-map", "0:a"}
	if hasCover {
		args = append(args, "-i", cfg.CoverArt)
		mapArgs = append(mapArgs, "-map", "2:v")
		args = append(args, "-disposition:v", "attached_pic")
	}
	args = append(args, mapArgs...)
	args = append(args, "-map_metadata", "1")
	args = append(args, "-c:a", "aac", "-b:a", fmt.Sprintf("%dk", cfg.M4BAACBitrate))
	if hasCover {
		args = append(args, "-c:v", "copy")
	}
	args = append(args, "-f", "mp4", outputPath)

	ctx, cancel := context.WithTimeout(ctx, 1800*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, e.FFmpegPath, args...)

	var output bytes.Buffer
	cmd.Stderr = &output
	cmd.Stdout = &output

	log.Printf("ffmpeg export m4b: %s", cmd.String())
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("export: ffmpeg m4b pass: %w\noutput: %s", err, output.String())
	}

	return checkNonEmpty(outputPath)
}

type chapterMark struct {
	Title      string
	Start, End int
}

// generateFFMetadata renders an ffmetadata1 document: global metadata
// (title/author/year/narrator) plus one [CHAPTER] block per chapter at
// millisecond resolution.
func generateFFMetadata(chapters []chapterMark, title string, metadata map[string]string) string {
	var b strings.Builder
	b.WriteString(";FFMETADATA1\n")

	if title != "" {
		fmt.Fprintf(&b, "title=%s\n", title)
	}
	if author := metadata["author"]; author != "" {
		fmt.Fprintf(&b, "artist=%s\n", author)
		fmt.Fprintf(&b, "album_artist=%s\n", author)
	}
	if year := metadata["year"]; year != "" {
		fmt.Fprintf(&b, "date=%s\n", year)
	}
	if narrator := metadata["narrator"]; narrator != "" {
		fmt.Fprintf(&b, "composer=%s\n", narrator)
		fmt.Fprintf(&b, "performer=%s\n", narrator)
	}
	b.WriteString("\n")

	for _, ch := range chapters {
		b.WriteString("[CHAPTER]\n")
		b.WriteString("TIMEBASE=1/1000\n")
		fmt.Fprintf(&b, "START=%d\n", ch.Start)
		fmt.Fprintf(&b, "END=%d\n", ch.End)
		fmt.Fprintf(&b, "title=%s\n", ch.Title)
		b.WriteString("\n")
	}

	return b.String()
}

// ManifestFile is one exported file's entry in manifest.json.
type ManifestFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// Manifest is the exported tree's integrity manifest.
type Manifest struct {
	ProjectID   string            `json:"project_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	TotalFiles  int               `json:"total_files"`
	Metadata    map[string]string `json:"metadata"`
	Files       []ManifestFile    `json:"files"`
}

// GenerateManifest walks exportDir, hashing every file except
// manifest.json itself, and writes manifest.json at the export root.
// Returns the manifest path.
func GenerateManifest(exportDir, projectID string, metadata map[string]string) (string, error) {
	var files []ManifestFile

	err := filepath.Walk(exportDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Base(path) == "manifest.json" {
			return nil
		}
		rel, err := filepath.Rel(exportDir, path)
		if err != nil {
			return err
		}
		sum, err := sha256File(path)
		if err != nil {
			return err
		}
		files = append(files, ManifestFile{
			Path:      filepath.ToSlash(rel),
			SizeBytes: info.Size(),
			SHA256:    sum,
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("export: walk export dir: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	if metadata == nil {
		metadata = map[string]string{}
	}
	manifest := Manifest{
		ProjectID:   projectID,
		GeneratedAt: time.Now().UTC(),
		TotalFiles:  len(files),
		Metadata:    metadata,
		Files:       files,
	}

	manifestPath := filepath.Join(exportDir, "manifest.json")
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: marshal manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return "", fmt.Errorf("export: write manifest: %w", err)
	}

	return manifestPath, nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func checkNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("export: output not written: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("export: output file is empty: %s", path)
	}
	return nil
}
