package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"moria.us/cptok/build/midi"
	"moria.us/cptok/build/tokfile"
)

func (a *app) encodeCommand() *cobra.Command {
	var output string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "encode <score>",
		Short: "Tokenize a MIDI file or text score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := a.readSet(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				ext := ".cptok"
				if asJSON {
					ext = ".json"
				}
				output = outputName(args[0], ext)
			}
			if err := tokfile.WriteFile(output, a.vocab, set); err != nil {
				return err
			}
			logrus.Infof("Wrote %d sequences to %s", len(set.Sequences), output)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "output token file")
	f.BoolVar(&asJSON, "json", false, "write JSON if no output is given")
	return cmd
}

func (a *app) decodeCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "decode <tokens>",
		Short: "Convert a token file to MIDI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := tokfile.ReadFile(args[0], a.vocab)
			if err != nil {
				return err
			}
			s, err := a.tok.Decode(set.Sequences, set.Programs, 0)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if output == "" {
				output = outputName(args[0], ".mid")
			}
			if err := midi.WriteFile(output, s); err != nil {
				return err
			}
			logrus.Infof("Wrote %d tracks to %s", len(s.Tracks), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output MIDI file")
	return cmd
}

func (a *app) validateCommand() *cobra.Command {
	var maxRatio float64
	cmd := &cobra.Command{
		Use:   "validate <tokens|score>",
		Short: "Print the fraction of tokens breaking the grammar in each sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := a.readSet(args[0])
			if err != nil {
				return err
			}
			ratios, err := a.tok.ErrorsAll(set.Sequences)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			var nbad int
			for i, r := range ratios {
				fmt.Fprintf(out, "%d\t%s\t%d\t%.4f\n", i, programName(set, i), len(set.Sequences[i]), r)
				if r > maxRatio {
					nbad++
				}
			}
			if nbad != 0 {
				return fmt.Errorf("%d sequences have an error ratio above %g", nbad, maxRatio)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&maxRatio, "max", 1, "largest error ratio accepted")
	return cmd
}

func (a *app) vocabCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vocab",
		Short: "Print the vocabulary of each token slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			v := a.vocab
			for i := 0; i < v.Width(); i++ {
				labels := v.Labels(i)
				fmt.Fprintf(out, "%d %s (%d): %s\n", i, v.Layout().SlotKind(i), len(labels), strings.Join(labels, " "))
			}
			return nil
		},
	}
}
