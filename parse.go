package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"scriptslap-server/scriptbody"

	"github.com/spf13/cobra"
)

type parseResult struct {
	Title      string               `json:"title,omitempty"`
	Structure  scriptbody.Structure `json:"structure"`
	Paragraphs []string             `json:"paragraphs"`
}

func parseCmd() *cobra.Command {
	var markdown bool

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Structure a stored script body (or plain script text) read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			return writeParsed(cmd.OutOrStdout(), string(data), markdown)
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render the script as a markdown document instead of JSON")
	return cmd
}

// writeParsed accepts either the stored {"output": ...} envelope or raw
// script text.
func writeParsed(w io.Writer, input string, markdown bool) error {
	out, err := scriptbody.DecodeBody(input)
	if err != nil {
		out = scriptbody.NewOutput("", "", input, "")
	}
	if markdown {
		_, err := io.WriteString(w, scriptbody.RenderMarkdown(out, ""))
		return err
	}

	text := out.MainBodyText()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(parseResult{
		Title:      out.Title,
		Structure:  scriptbody.ParseSections(text),
		Paragraphs: scriptbody.SplitParagraphs(text),
	}); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
