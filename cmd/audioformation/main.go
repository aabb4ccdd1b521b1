// Command audioformation drives the audiobook production pipeline
// end to end: project bootstrap, text ingest, the validate/qc_final
// hard gates, TTS generation, post-processing, ambient bed composition,
// VAD-ducked mixing, and MP3/M4B export.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCodeFor(err))
	}
}
