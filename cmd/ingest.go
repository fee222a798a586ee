package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KatnessChen/MaraMap-Backend/internal/api"
	"github.com/KatnessChen/MaraMap-Backend/pkg/client"
)

var (
	ingestOriginalURL string
	ingestText        string
	ingestTextFile    string
	ingestImages      []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest SOURCE-ID",
	Short: "Submit a post to a remote server",
	Long: `Submits a post for ingestion. Submitting the same SOURCE-ID again is safe:
the server answers with the id of the post stored the first time.`,
	Example: `  maramap --server https://maramap.example.com ingest fb_123 \
    --url https://facebook.com/posts/123 --text "hello world"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := ingestText
		if ingestTextFile != "" {
			raw, err := os.ReadFile(ingestTextFile)
			if err != nil {
				return fmt.Errorf("reading text file: %w", err)
			}
			text = string(raw)
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		resp, correlation, err := cli.Ingest(cmd.Context(), api.IngestPayload{
			SourceID:    args[0],
			OriginalURL: ingestOriginalURL,
			RawText:     text,
			RawImages:   ingestImages,
		})
		if err != nil {
			return logError(err, correlation, "failed to ingest post")
		}

		if client.Created(resp) {
			log.Info().Str("correlation_id", correlation).Msgf("%s %s, post id %s", greenCheck, resp.Message, bold(resp.PostID))
		} else {
			log.Info().Str("correlation_id", correlation).Msgf("%s, post id %s", resp.Message, bold(resp.PostID))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVarP(&ingestOriginalURL, "url", "u", "", "URL of the original post")
	ingestCmd.Flags().StringVarP(&ingestText, "text", "t", "", "Text of the post")
	ingestCmd.Flags().StringVar(&ingestTextFile, "text-file", "", "Read the text of the post from a file")
	ingestCmd.Flags().StringSliceVarP(&ingestImages, "image", "i", nil, "Image URL (repeatable)")
	ingestCmd.MarkFlagsMutuallyExclusive("text", "text-file")
	_ = ingestCmd.MarkFlagRequired("url")
}
