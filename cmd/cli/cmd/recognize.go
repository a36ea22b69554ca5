package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/angelospk/animatch/internal/server"
)

var (
	recognizeWithCloud       bool
	recognizeUseStorage      bool
	recognizeAnimePriority   bool
	recognizeBangumiPriority bool
	recognizeBangumiFailover bool
	recognizeBatch           bool
	recognizeForceFilename   bool
	recognizeTMDBID          string
	recognizeTMDBType        string
	recognizeDescription     string
	recognizeJSON            bool
	recognizeVerbose         bool
)

// recognizeCmd represents the recognize command
var recognizeCmd = &cobra.Command{
	Use:   "recognize <filename>...",
	Short: "Recognize one or more release filenames",
	Long: `Recognizes release filenames (or paths) into structured records.

Examples:
  animatch recognize "[ANi] 葬送的芙莉莲 - 07 [1080P].mp4"
  animatch recognize --with-cloud --use-storage "Frieren/Season 2/05.mkv"
  animatch recognize --with-cloud --tmdb-id 209867 --tmdb-type tv "05.mkv"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecognize,
}

func init() {
	RootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().BoolVar(&recognizeWithCloud, "with-cloud", false, "Match the result against TMDB/bgm.tv")
	recognizeCmd.Flags().BoolVar(&recognizeUseStorage, "use-storage", false, "Use the recognition memory and metadata cache")
	recognizeCmd.Flags().BoolVar(&recognizeAnimePriority, "anime-priority", true, "Prefer animation-genre candidates when scoring")
	recognizeCmd.Flags().BoolVar(&recognizeBangumiPriority, "bangumi-priority", false, "Search bgm.tv before TMDB")
	recognizeCmd.Flags().BoolVar(&recognizeBangumiFailover, "bangumi-failover", false, "Fall back to bgm.tv when TMDB finds nothing")
	recognizeCmd.Flags().BoolVar(&recognizeBatch, "batch", false, "Probe for collection ranges when no single episode is found")
	recognizeCmd.Flags().BoolVar(&recognizeForceFilename, "force-filename", false, "Treat the input as a bare filename, ignoring sibling folders")
	recognizeCmd.Flags().StringVar(&recognizeTMDBID, "tmdb-id", "", "Pin the TMDB id instead of searching")
	recognizeCmd.Flags().StringVar(&recognizeTMDBType, "tmdb-type", "", "Media type for a pinned id (movie or tv)")
	recognizeCmd.Flags().StringVar(&recognizeDescription, "description", "", "Release-page description to mine for season/collection facts")
	recognizeCmd.Flags().BoolVar(&recognizeJSON, "json", false, "Print the full result as JSON")
	recognizeCmd.Flags().BoolVarP(&recognizeVerbose, "verbose", "v", false, "Print the recognition trace")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	if recognizeVerbose {
		logger.SetLevel(logrus.InfoLevel)
	}

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	srv := server.New(serverConfig(), store, logger)
	ctx := context.Background()

	for _, name := range args {
		result := srv.Recognize(ctx, &server.RecognizeRequest{
			Filename:         name,
			Description:      recognizeDescription,
			ForceFilename:    recognizeForceFilename,
			BatchEnhancement: recognizeBatch,
			WithCloud:        recognizeWithCloud,
			UseStorage:       recognizeUseStorage,
			AnimePriority:    recognizeAnimePriority,
			BangumiPriority:  recognizeBangumiPriority,
			BangumiFailover:  recognizeBangumiFailover,
			TMDBID:           recognizeTMDBID,
			TMDBType:         recognizeTMDBType,
		})
		if err := printResult(cmd.OutOrStdout(), name, result); err != nil {
			return err
		}
	}
	return nil
}

func printResult(w io.Writer, name string, result *server.RecognizeResult) error {
	if recognizeJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintln(w, name)
	fmt.Fprintf(w, "  %s\n", result.Summary)
	fmt.Fprintf(w, "  Title: %s", result.Title)
	if result.Year != "" {
		fmt.Fprintf(w, " (%s)", result.Year)
	}
	fmt.Fprintln(w)
	if result.TMDBID != "" {
		fmt.Fprintf(w, "  TMDB: %s (score %.1f)\n", result.TMDBID, result.Score)
	}
	rec := result.Record
	var tags []string
	for _, tag := range []string{rec.Resolution, rec.Source, rec.VideoCodec, rec.AudioCodec, rec.SubtitleLang} {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) > 0 {
		fmt.Fprintf(w, "  Tags: %s\n", strings.Join(tags, " / "))
	}
	if recognizeVerbose {
		for _, line := range result.Logs {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
	return nil
}
