package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func embedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "embed [text...]",
		Short: "Embed texts and print the vectors as JSON",
		Long:  "Embed the given texts. Without arguments, texts are read one per line from --file or stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			texts := args
			if len(texts) == 0 {
				var in io.Reader = cmd.InOrStdin()
				if file != "" {
					f, err := os.Open(file)
					if err != nil {
						return fmt.Errorf("embed: opening %s: %w", file, err)
					}
					defer func() { _ = f.Close() }()
					in = f
				}
				var err error
				texts, err = readLines(in)
				if err != nil {
					return fmt.Errorf("embed: reading input: %w", err)
				}
			}
			if len(texts) == 0 {
				return fmt.Errorf("embed: no input texts")
			}

			emb, info, err := newEmbedder(logger)
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			defer func() { _ = emb.Close() }()

			vecs, err := emb.EmbedAll(cmd.Context(), texts)
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}

			out := struct {
				Provider   string      `json:"provider"`
				Model      string      `json:"model"`
				Dimension  int         `json:"dimension"`
				Embeddings [][]float32 `json:"embeddings"`
			}{Provider: info.Provider, Model: info.Model, Embeddings: vecs}
			if len(vecs) > 0 {
				out.Dimension = len(vecs[0])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read texts from file, one per line")
	return cmd
}

// readLines returns the non-blank lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}
